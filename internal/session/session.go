// Package session owns the state behind the dashboard: the current record
// collection, its summary, and the upload history. State is replaced
// wholesale on successful loads and left untouched on any failure, so the
// presented view is always internally consistent.
package session

import (
	"context"
	"io"
	"sync"

	"github.com/tphummel/insight_hub/internal/datasource"
	"github.com/tphummel/insight_hub/internal/history"
	"github.com/tphummel/insight_hub/internal/models"
	"github.com/tphummel/insight_hub/internal/query"
)

// View is a read-only snapshot of the session's current dataset.
type View struct {
	DatasetID   string             `json:"id"`
	Filename    string             `json:"filename"`
	Summary     models.DataSummary `json:"summary"`
	RecordCount int                `json:"record_count"`
	Loaded      bool               `json:"-"`
}

// Session is the single owner of the dashboard state. Safe for concurrent
// use; all mutation happens under the write lock and commits everything or
// nothing.
type Session struct {
	mu  sync.RWMutex
	src datasource.Source

	records   []models.EquipmentRecord
	summary   models.DataSummary
	history   []models.UploadHistory
	datasetID string
	filename  string
	loaded    bool
}

// New builds an empty session over the given data source.
func New(src datasource.Source) *Session {
	return &Session{src: src}
}

// Bootstrap loads the initial view: the upload history, then the newest
// entry's dataset when one exists. A restore failure leaves the history in
// place and is returned to the caller.
func (s *Session) Bootstrap(ctx context.Context) error {
	hist, err := s.src.History(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.history = hist
	s.mu.Unlock()

	if len(hist) == 0 {
		return nil
	}

	res, err := s.src.Restore(ctx, hist[0].ID)
	if err != nil {
		return err
	}
	s.commit(res, hist[0].Filename, nil)
	return nil
}

// Upload ingests a new CSV file. The view and history are replaced only
// after both the load and the history refresh succeed.
func (s *Session) Upload(ctx context.Context, filename string, file io.Reader) (*datasource.LoadResult, error) {
	res, err := s.src.Load(ctx, filename, file)
	if err != nil {
		return nil, err
	}

	hist, err := s.src.History(ctx)
	if err != nil {
		return nil, err
	}

	s.commit(res, filename, hist)
	return res, nil
}

// SelectDataset restores a past upload into the current view. The history
// list itself is unchanged. Unknown ids surface the data source's
// not-found error and change nothing.
func (s *Session) SelectDataset(ctx context.Context, id string) error {
	res, err := s.src.Restore(ctx, id)
	if err != nil {
		return err
	}

	filename := res.Filename
	if filename == "" {
		if entry, err := s.HistoryEntry(id); err == nil {
			filename = entry.Filename
		}
	}

	s.commit(res, filename, nil)
	return nil
}

// commit replaces the presented state wholesale. A nil hist keeps the
// current history list.
func (s *Session) commit(res *datasource.LoadResult, filename string, hist []models.UploadHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = res.Records
	s.summary = res.Summary
	s.datasetID = res.DatasetID
	s.filename = filename
	s.loaded = true
	if hist != nil {
		s.history = hist
	}
}

// Query runs the table engine over the current records.
func (s *Session) Query(p query.Params) query.Result {
	s.mu.RLock()
	records := s.records
	s.mu.RUnlock()
	return query.Run(records, p)
}

// Records returns a copy of the current record collection.
func (s *Session) Records() []models.EquipmentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.EquipmentRecord, len(s.records))
	copy(out, s.records)
	return out
}

// History returns a copy of the current history list, newest first.
func (s *Session) History() []models.UploadHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.UploadHistory, len(s.history))
	copy(out, s.history)
	return out
}

// HistoryEntry looks up a history entry by id, returning
// history.ErrNotFound for unknown ids.
func (s *Session) HistoryEntry(id string) (models.UploadHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.history {
		if e.ID == id {
			return e, nil
		}
	}
	return models.UploadHistory{}, history.ErrNotFound
}

// Snapshot returns the current dataset view.
func (s *Session) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View{
		DatasetID:   s.datasetID,
		Filename:    s.filename,
		Summary:     s.summary,
		RecordCount: len(s.records),
		Loaded:      s.loaded,
	}
}

// StatusCounts reports the current view's status distribution. Implements
// the metrics collector's source interface.
func (s *Session) StatusCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.summary.StatusDistribution))
	for k, v := range s.summary.StatusDistribution {
		out[k] = v
	}
	return out
}

// DatasetCount reports the number of history entries.
func (s *Session) DatasetCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}
