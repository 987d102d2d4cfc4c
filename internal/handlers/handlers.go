package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tphummel/insight_hub/internal/auth"
	"github.com/tphummel/insight_hub/internal/csvio"
	"github.com/tphummel/insight_hub/internal/datasource"
	"github.com/tphummel/insight_hub/internal/db"
	"github.com/tphummel/insight_hub/internal/history"
	"github.com/tphummel/insight_hub/internal/hubapi"
	"github.com/tphummel/insight_hub/internal/metrics"
	"github.com/tphummel/insight_hub/internal/models"
	"github.com/tphummel/insight_hub/internal/query"
	"github.com/tphummel/insight_hub/internal/report"
	"github.com/tphummel/insight_hub/internal/session"
)

// maxUploadBytes caps the size of an uploaded CSV file.
const maxUploadBytes = 16 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	Session  *session.Session
	Source   datasource.Source
	Auth     *auth.Authenticator
	DB       *db.DB         // nil in connected mode
	Upstream *hubapi.Client // nil in local mode
	Version  string
	Commit   string
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeClassified maps a data-source failure onto the HTTP taxonomy: parse
// failures are the client's fault, missing datasets are 404, upstream
// failures are 502 (except upstream 404s, which stay 404), missing
// credentials are 401.
func writeClassified(w http.ResponseWriter, err error) {
	var parseErr *csvio.ParseError
	var apiErr *hubapi.APIError

	switch {
	case errors.As(err, &parseErr):
		writeError(w, http.StatusBadRequest, parseErr.Error())
	case errors.Is(err, history.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "dataset not found")
	case errors.Is(err, hubapi.ErrNoCredential):
		writeError(w, http.StatusUnauthorized, "not authenticated with upstream API")
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == http.StatusNotFound {
			writeError(w, http.StatusNotFound, "dataset not found")
			return
		}
		writeError(w, http.StatusBadGateway, fmt.Sprintf("upstream API failed with status %d", apiErr.StatusCode))
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func uploadOutcome(err error) string {
	var parseErr *csvio.ParseError
	var apiErr *hubapi.APIError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &parseErr):
		return "parse_error"
	case errors.As(err, &apiErr):
		return "upstream_error"
	default:
		return "error"
	}
}

// Health handles GET /healthz — no auth required.
// Returns 503 if the snapshot database is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		if err := h.DB.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.Version,
		"commit":  h.Commit,
	})
}

// Token handles POST /api/v1/token: exchanges the dashboard credentials for
// an access token used by the export endpoints.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 4*1024)
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	token, err := h.Auth.IssueToken(req.Username, req.Password)
	if errors.Is(err, auth.ErrBadCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"access": token})
}

// UploadDataset handles POST /api/v1/datasets: a multipart CSV upload that
// becomes the new current view and a new history entry.
func (h *Handler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		metrics.RecordUpload("validation_error")
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	filename := header.Filename
	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		metrics.RecordUpload("validation_error")
		writeError(w, http.StatusBadRequest, "please upload a CSV file")
		return
	}

	res, err := h.Session.Upload(r.Context(), filename, file)
	metrics.RecordUpload(uploadOutcome(err))
	if err != nil {
		writeClassified(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":           res.DatasetID,
		"filename":     res.Filename,
		"record_count": len(res.Records),
		"summary":      res.Summary,
	})
}

// LatestDataset handles GET /api/v1/datasets/latest: the currently
// presented view. 404 until something has been loaded.
func (h *Handler) LatestDataset(w http.ResponseWriter, r *http.Request) {
	view := h.Session.Snapshot()
	if !view.Loaded {
		writeError(w, http.StatusNotFound, "no dataset loaded")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HistoryList handles GET /api/v1/datasets/history.
func (h *Handler) HistoryList(w http.ResponseWriter, r *http.Request) {
	hist := h.Session.History()
	if hist == nil {
		hist = []models.UploadHistory{}
	}
	writeJSON(w, http.StatusOK, hist)
}

// DatasetSummary handles GET /api/v1/datasets/{id}: the stored history
// entry, summary included.
func (h *Handler) DatasetSummary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entry, err := h.Session.HistoryEntry(id)
	if err != nil {
		writeClassified(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// DatasetRecords handles GET /api/v1/datasets/{id}/records: the full record
// list of any dataset in the history, without changing the current view.
func (h *Handler) DatasetRecords(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := h.Source.Restore(r.Context(), id)
	if err != nil {
		writeClassified(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Records)
}

// SelectDataset handles POST /api/v1/datasets/{id}/select: restores a past
// upload as the current view.
func (h *Handler) SelectDataset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Session.SelectDataset(r.Context(), id); err != nil {
		writeClassified(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Session.Snapshot())
}

// QueryRecords handles GET /api/v1/records: the paged table view over the
// current records. Query params: search, sort, order (asc|desc), page.
func (h *Handler) QueryRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := 0
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "page must be a non-negative integer")
			return
		}
		page = n
	}

	order := q.Get("order")
	if order != "" && order != "asc" && order != "desc" {
		writeError(w, http.StatusBadRequest, "order must be 'asc' or 'desc'")
		return
	}

	sortField := q.Get("sort")
	if sortField != "" && !query.HasField(h.Session.Records(), sortField) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown sort field %q", sortField))
		return
	}

	result := h.Session.Query(query.Params{
		Search:    q.Get("search"),
		SortField: sortField,
		Ascending: order != "desc",
		Page:      page,
	})
	if result.Records == nil {
		result.Records = []models.EquipmentRecord{}
	}
	writeJSON(w, http.StatusOK, result)
}

// ExportPDF handles GET /api/v1/export/pdf — requires auth. In connected
// mode the document comes from the upstream API; in local mode it is
// rendered from the current view.
func (h *Handler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	var (
		data []byte
		err  error
	)
	if h.Upstream != nil {
		data, err = h.Upstream.ExportPDF(r.Context())
		if err != nil {
			writeClassified(w, err)
			return
		}
	} else {
		view := h.Session.Snapshot()
		if !view.Loaded {
			writeError(w, http.StatusNotFound, "no dataset loaded")
			return
		}
		data, err = report.PDF(view.Filename, view.Summary, h.Session.Records())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to generate PDF")
			return
		}
	}

	name := fmt.Sprintf("equipment_report_%s.pdf", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(data)
}

// ExportXLSX handles GET /api/v1/export/xlsx — requires auth. Always
// rendered from the current view.
func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	view := h.Session.Snapshot()
	if !view.Loaded {
		writeError(w, http.StatusNotFound, "no dataset loaded")
		return
	}

	data, err := report.XLSX(view.Filename, view.Summary, h.Session.Records())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate workbook")
		return
	}

	name := fmt.Sprintf("equipment_report_%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(data)
}
