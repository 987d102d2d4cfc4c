// Package hubapi is the client for the remote dashboard API used in
// connected mode. The remote endpoint is the authority for parsing,
// aggregation, and persistence; this client only moves data.
package hubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/tphummel/insight_hub/internal/models"
)

// ErrNoCredential is returned when an authenticated operation is attempted
// before a token has been obtained. It is detected before any network call.
var ErrNoCredential = errors.New("no API credential available")

// APIError is a non-success response from the remote API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Body)
}

// FlexID accepts a JSON string or number; the remote API serializes dataset
// ids as integers while this codebase treats ids as opaque strings.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case string:
		*f = FlexID(x)
	case float64:
		*f = FlexID(fmt.Sprintf("%.0f", x))
	case nil:
		*f = ""
	default:
		return fmt.Errorf("unsupported id type %T", v)
	}
	return nil
}

// UploadResult is the remote response to a dataset upload.
type UploadResult struct {
	ID      FlexID             `json:"id"`
	Summary models.DataSummary `json:"summary"`
}

// Client talks to the remote dashboard API. The bearer token, when set, is
// attached to every request.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a client for the API rooted at endpoint
// (e.g. "http://localhost:8000/api").
func NewClient(endpoint string) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	return &Client{
		baseURL: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// SetToken installs the bearer credential used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// HasToken reports whether a credential has been installed.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// Login exchanges username/password for an access token via the token
// endpoint and installs it on the client.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body := map[string]string{"username": username, "password": password}
	var out struct {
		Access string `json:"access"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/token/", body, http.StatusOK, &out); err != nil {
		return "", err
	}
	if out.Access == "" {
		return "", fmt.Errorf("token endpoint returned an empty access token")
	}
	c.token = out.Access
	return out.Access, nil
}

// Upload submits a raw CSV file as multipart form data. The remote side
// parses and aggregates it and returns the new dataset id with its summary.
func (c *Client) Upload(ctx context.Context, filename string, file io.Reader) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/datasets/", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	var out UploadResult
	if err := c.send(req, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LatestSummary fetches the summary of the most recently uploaded dataset.
func (c *Client) LatestSummary(ctx context.Context) (models.DataSummary, error) {
	var out struct {
		Summary models.DataSummary `json:"summary"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/datasets/latest/", nil, http.StatusOK, &out)
	return out.Summary, err
}

// DatasetSummary fetches the summary of a specific dataset.
func (c *Client) DatasetSummary(ctx context.Context, id string) (models.DataSummary, error) {
	var out struct {
		Summary models.DataSummary `json:"summary"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/datasets/"+id+"/", nil, http.StatusOK, &out)
	return out.Summary, err
}

// History fetches the remote upload history, newest first.
func (c *Client) History(ctx context.Context) ([]models.UploadHistory, error) {
	var out []models.UploadHistory
	err := c.doJSON(ctx, http.MethodGet, "/datasets/history/", nil, http.StatusOK, &out)
	return out, err
}

// Records fetches the full record list of a dataset.
func (c *Client) Records(ctx context.Context, id string) ([]models.EquipmentRecord, error) {
	var out []models.EquipmentRecord
	err := c.doJSON(ctx, http.MethodGet, "/datasets/"+id+"/records/", nil, http.StatusOK, &out)
	return out, err
}

// ExportPDF fetches the rendered PDF report. A credential is required; its
// absence fails before any network activity.
func (c *Client) ExportPDF(ctx context.Context) ([]byte, error) {
	if c.token == "" {
		return nil, ErrNoCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/export/pdf/", nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(payload)}
	}
	return payload, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, expectedStatus int, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	return c.send(req, expectedStatus, out)
}

func (c *Client) send(req *http.Request, expectedStatus int, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != expectedStatus {
		return &APIError{StatusCode: resp.StatusCode, Body: truncate(payload)}
	}
	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func truncate(b []byte) string {
	const max = 512
	s := string(b)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
