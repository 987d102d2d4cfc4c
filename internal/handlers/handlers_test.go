package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tphummel/insight_hub/internal/auth"
	"github.com/tphummel/insight_hub/internal/datasource"
	"github.com/tphummel/insight_hub/internal/db"
	"github.com/tphummel/insight_hub/internal/handlers"
	"github.com/tphummel/insight_hub/internal/middleware"
	"github.com/tphummel/insight_hub/internal/models"
	"github.com/tphummel/insight_hub/internal/session"
)

const (
	testUsername = "admin"
	testPassword = "hunter2"
)

const sampleCSV = `equipment_id,equipment_type,manufacturer,status,cost,efficiency_rating,runtime_hours
EQ-001,Pump,Acme,operational,1000,90,100
EQ-002,Motor,Borg,maintenance,3000,80,200
EQ-003,Pump,Acme,faulty,2000,70,300
`

// newTestMux builds the same mux as main.go in local mode, backed by an
// in-memory database. It returns both the mux (for serving requests) and
// the handler (for direct access to the session).
func newTestMux(t *testing.T) (http.Handler, *handlers.Handler) {
	t.Helper()
	d, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	local, err := datasource.NewLocal(d)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	h := &handlers.Handler{
		Session: session.New(local),
		Source:  local,
		Auth:    auth.New("test-secret", testUsername, testPassword),
		DB:      d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("POST /api/v1/token", h.Token)
	mux.HandleFunc("POST /api/v1/datasets", h.UploadDataset)
	mux.HandleFunc("GET /api/v1/datasets/latest", h.LatestDataset)
	mux.HandleFunc("GET /api/v1/datasets/history", h.HistoryList)
	mux.HandleFunc("GET /api/v1/datasets/{id}", h.DatasetSummary)
	mux.HandleFunc("GET /api/v1/datasets/{id}/records", h.DatasetRecords)
	mux.HandleFunc("POST /api/v1/datasets/{id}/select", h.SelectDataset)
	mux.HandleFunc("GET /api/v1/records", h.QueryRecords)
	mux.Handle("GET /api/v1/export/pdf", middleware.Auth(h.Auth, http.HandlerFunc(h.ExportPDF)))
	mux.Handle("GET /api/v1/export/xlsx", middleware.Auth(h.Auth, http.HandlerFunc(h.ExportXLSX)))

	return mux, h
}

// uploadReq builds a multipart upload request carrying content as filename.
func uploadReq(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/v1/datasets", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

// serve is a small helper that runs a request through the mux and returns the recorder.
func serve(mux http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

// decodeBody unmarshals a recorder's body into v.
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response body: %v\nbody: %s", err, w.Body.String())
	}
}

// mustUpload uploads sampleCSV and returns the new dataset id.
func mustUpload(t *testing.T, mux http.Handler) string {
	t.Helper()
	w := serve(mux, uploadReq(t, "plant.csv", sampleCSV))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status: got %d, body: %s", w.Code, w.Body.String())
	}
	var body struct {
		ID string `json:"id"`
	}
	decodeBody(t, w, &body)
	return body.ID
}

// issueToken exchanges the test credentials for a bearer token.
func issueToken(t *testing.T, mux http.Handler) string {
	t.Helper()
	payload := fmt.Sprintf(`{"username":%q,"password":%q}`, testUsername, testPassword)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/token", strings.NewReader(payload))
	r.Header.Set("Content-Type", "application/json")
	w := serve(mux, r)
	if w.Code != http.StatusOK {
		t.Fatalf("token status: got %d, body: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	decodeBody(t, w, &body)
	return body["access"]
}

// --- Health ---

func TestHealth(t *testing.T) {
	mux, _ := newTestMux(t)
	w := serve(mux, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", w.Code)
	}
	var body map[string]string
	decodeBody(t, w, &body)
	if body["status"] != "ok" {
		t.Errorf("status field: got %q, want ok", body["status"])
	}
}

// --- Token ---

func TestToken(t *testing.T) {
	mux, _ := newTestMux(t)

	token := issueToken(t, mux)
	if token == "" {
		t.Error("expected a non-empty access token")
	}
}

func TestToken_BadCredentials(t *testing.T) {
	mux, _ := newTestMux(t)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/token", strings.NewReader(`{"username":"admin","password":"wrong"}`))
	r.Header.Set("Content-Type", "application/json")
	w := serve(mux, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", w.Code)
	}
}

func TestToken_MalformedBody(t *testing.T) {
	mux, _ := newTestMux(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing password", `{"username":"admin"}`},
		{"empty", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/token", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			w := serve(mux, r)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", w.Code)
			}
		})
	}
}

// --- Upload ---

func TestUploadDataset(t *testing.T) {
	mux, _ := newTestMux(t)

	w := serve(mux, uploadReq(t, "plant.csv", sampleCSV))
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}

	var body struct {
		ID          string             `json:"id"`
		Filename    string             `json:"filename"`
		RecordCount int                `json:"record_count"`
		Summary     models.DataSummary `json:"summary"`
	}
	decodeBody(t, w, &body)

	if body.ID == "" {
		t.Error("expected a dataset id")
	}
	if body.Filename != "plant.csv" {
		t.Errorf("filename: got %q", body.Filename)
	}
	if body.RecordCount != 3 {
		t.Errorf("record_count: got %d, want 3", body.RecordCount)
	}
	if body.Summary.TotalCount != 3 {
		t.Errorf("summary.total_count: got %d, want 3", body.Summary.TotalCount)
	}
	if body.Summary.Averages.Cost != 2000 {
		t.Errorf("summary avg cost: got %v, want 2000", body.Summary.Averages.Cost)
	}
}

func TestUploadDataset_RejectsNonCSV(t *testing.T) {
	mux, _ := newTestMux(t)

	w := serve(mux, uploadReq(t, "report.pdf", "%PDF-1.4"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
	var body map[string]string
	decodeBody(t, w, &body)
	if !strings.Contains(body["error"], "CSV") {
		t.Errorf("error message: got %q", body["error"])
	}
}

func TestUploadDataset_MissingFileField(t *testing.T) {
	mux, _ := newTestMux(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("other", "value") //nolint:errcheck
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/api/v1/datasets", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := serve(mux, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestUploadDataset_ParseFailure(t *testing.T) {
	mux, _ := newTestMux(t)

	bad := "equipment_id,cost\nEQ-001,not-a-number\n"
	w := serve(mux, uploadReq(t, "bad.csv", bad))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", w.Code)
	}
	var body map[string]string
	decodeBody(t, w, &body)
	if !strings.Contains(body["error"], "cost") {
		t.Errorf("error should name the bad column: %q", body["error"])
	}

	// a failed upload must not appear in the history
	hw := serve(mux, httptest.NewRequest(http.MethodGet, "/api/v1/datasets/history", nil))
	var hist []models.UploadHistory
	decodeBody(t, hw, &hist)
	if len(hist) != 0 {
		t.Errorf("history after failed upload: got %d entries, want 0", len(hist))
	}
}

// --- Latest / history / select ---

func TestLatestDataset_EmptySession(t *testing.T) {
	mux, _ := newTestMux(t)

	w := serve(mux, httptest.NewRequest(http.MethodGet, "/api/v1/datasets/latest", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestLatestDataset(t *testing.T) {
	mux, _ := newTestMux(t)
	id := mustUpload(t, mux)

	w := serve(mux, httptest.NewRequest(http.MethodGet, "/api/v1/datasets/latest", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}

	var view struct {
		ID          string             `json:"id"`
		Filename    string             `json:"filename"`
		RecordCount int                `json:"record_count"`
		Summary     models.DataSummary `json:"summary"`
	}
	decodeBody(t, w, &view)
	if view.ID != id {
		t.Errorf("id: got %q, want %q", view.ID, id)
	}
	if view.Filename != "plant.csv" || view.RecordCount != 3 {
		t.Errorf("view: got %+v", view)
	}
}

func TestHistoryList_EmptyIsJSONArray(t *testing.T) {
	mux, _ := newTestMux(t)

	w := serve(mux, httptest.NewRequest(http.MethodGet, "/api/v1/datasets/history", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("empty history body: got %s, want []", got)
	}
}

func TestHistoryList_NewestFirst(t *testing.T) {
	mux, _ := newTestMux(t)

	serve(mux, uploadReq(t, "first.csv", sampleCSV))
	serve(mux, uploadReq(t, "second.csv", sampleCSV))

	w := serve(mux, httptest.NewRequest(http.MethodGet, "/api/v1/datasets/history", nil))
	var hist []models.UploadHistory
	decodeBody(t, w, &hist)

	if len(hist) != 2 {
		t.Fatalf("got %d entries, want 2", len(hist))
	}
	if hist[0].Filename != "second.csv" || hist[1].Filename != "first.csv" {
		t.Errorf("order: got [%s %s]", hist[0].Filename, hist[1].Filename)
	}
}

func TestDatasetSummary(t *testing.T) {
	mux, _ := newTestMux(t)
	id := mustUpload(t, mux)

	w := serve(mux, httptest.NewRequest(http.MethodGet, "/api/v1/datasets/"+id, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var entry models.UploadHistory
	decodeBody(t, w, &entry)
	if entry.ID != id || entry.RecordCount != 3 {
		t.Errorf("entry: got %+v", entry)
	}
	if entry.Summary.StatusDistribution["operational"] != 1 {
		t.Errorf("summary: got %+v", entry.Summary)
	}
}

func TestDatasetSummary_NotFound(t *testing.T) {
	mux, _ := newTestMux(t)
	mustUpload(t, mux)

	w := serve(mux, httptest.NewRequest(http.MethodGet, "/api/v1/datasets/no-such-id", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestDatasetRecords(t *testing.T) {
	mux, _ := newTestMux(t)
	id := mustUpload(t, mux)

	w := serve(mux, httptest.NewRequest(http.MethodGet, "/api/v1/datasets/"+id+"/records", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var records []models.EquipmentRecord
	decodeBody(t, w, &records)
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].EquipmentID != "EQ-001" {
		t.Errorf("first record: got %+v", records[0])
	}
}

func TestSelectDataset(t *testing.T) {
	mux, h := newTestMux(t)

	firstID := mustUpload(t, mux)
	serve(mux, uploadReq(t, "second.csv", "equipment_id\nEQ-100\n"))

	w := serve(mux, httptest.NewRequest(http.MethodPost, "/api/v1/datasets/"+firstID+"/select", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}

	var view struct {
		ID          string `json:"id"`
		Filename    string `json:"filename"`
		RecordCount int    `json:"record_count"`
	}
	decodeBody(t, w, &view)
	if view.ID != firstID || view.Filename != "plant.csv" || view.RecordCount != 3 {
		t.Errorf("view after select: got %+v", view)
	}

	// both uploads remain in the history
	if got := len(h.Session.History()); got != 2 {
		t.Errorf("history: got %d entries, want 2", got)
	}
}

func TestSelectDataset_NotFound(t *testing.T) {
	mux, _ := newTestMux(t)
	mustUpload(t, mux)

	w := serve(mux, httptest.NewRequest(http.MethodPost, "/api/v1/datasets/no-such-id/select", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

// --- Records query ---

func TestQueryRecords(t *testing.T) {
	mux, _ := newTestMux(t)
	mustUpload(t, mux)

	w := serve(mux, httptest.NewRequest(http.MethodGet, "/api/v1/records?search=acme&sort=cost&order=desc", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}

	var res struct {
		Records      []models.EquipmentRecord `json:"records"`
		TotalMatches int                      `json:"total_matches"`
		Page         int                      `json:"page"`
		TotalPages   int                      `json:"total_pages"`
		PageSize     int                      `json:"page_size"`
	}
	decodeBody(t, w, &res)

	if res.TotalMatches != 2 {
		t.Errorf("total_matches: got %d, want 2", res.TotalMatches)
	}
	if len(res.Records) != 2 {
		t.Fatalf("records: got %d, want 2", len(res.Records))
	}
	// descending by cost: EQ-003 (2000) before EQ-001 (1000)
	if res.Records[0].EquipmentID != "EQ-003" || res.Records[1].EquipmentID != "EQ-001" {
		t.Errorf("order: got [%s %s]", res.Records[0].EquipmentID, res.Records[1].EquipmentID)
	}
	if res.PageSize != 10 {
		t.Errorf("page_size: got %d, want 10", res.PageSize)
	}
}

func TestQueryRecords_EmptySessionIsJSONArray(t *testing.T) {
	mux, _ := newTestMux(t)

	w := serve(mux, httptest.NewRequest(http.MethodGet, "/api/v1/records", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"records":[]`) {
		t.Errorf("records should be an empty array: %s", w.Body.String())
	}
}

func TestQueryRecords_BadParams(t *testing.T) {
	mux, _ := newTestMux(t)
	mustUpload(t, mux)

	tests := []struct {
		name string
		url  string
	}{
		{"negative page", "/api/v1/records?page=-1"},
		{"non-numeric page", "/api/v1/records?page=abc"},
		{"bad order", "/api/v1/records?order=sideways"},
		{"unknown sort field", "/api/v1/records?sort=no_such_column"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(mux, httptest.NewRequest(http.MethodGet, tt.url, nil))
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", w.Code)
			}
		})
	}
}

func TestQueryRecords_SortByDynamicColumn(t *testing.T) {
	mux, _ := newTestMux(t)

	csv := "equipment_id,zone\nEQ-001,delta\nEQ-002,alpha\n"
	w := serve(mux, uploadReq(t, "zones.csv", csv))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: got %d", w.Code)
	}

	qw := serve(mux, httptest.NewRequest(http.MethodGet, "/api/v1/records?sort=zone&order=asc", nil))
	if qw.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", qw.Code, qw.Body.String())
	}
	var res struct {
		Records []models.EquipmentRecord `json:"records"`
	}
	decodeBody(t, qw, &res)
	if res.Records[0].EquipmentID != "EQ-002" {
		t.Errorf("ascending by zone: got %s first", res.Records[0].EquipmentID)
	}
}

// --- Exports ---

func TestExportPDF_RequiresToken(t *testing.T) {
	mux, _ := newTestMux(t)
	mustUpload(t, mux)

	w := serve(mux, httptest.NewRequest(http.MethodGet, "/api/v1/export/pdf", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", w.Code)
	}
}

func TestExportPDF(t *testing.T) {
	mux, _ := newTestMux(t)
	mustUpload(t, mux)
	token := issueToken(t, mux)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/export/pdf", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := serve(mux, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type: got %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "equipment_report_") {
		t.Errorf("Content-Disposition: got %q", cd)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Error("body should be a PDF document")
	}
}

func TestExportPDF_NoDataset(t *testing.T) {
	mux, _ := newTestMux(t)
	token := issueToken(t, mux)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/export/pdf", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := serve(mux, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestExportXLSX(t *testing.T) {
	mux, _ := newTestMux(t)
	mustUpload(t, mux)
	token := issueToken(t, mux)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/export/xlsx", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := serve(mux, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("Content-Type: got %q", ct)
	}
	// XLSX files are ZIP archives
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Error("body should be an XLSX workbook")
	}
}
