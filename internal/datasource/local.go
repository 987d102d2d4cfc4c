package datasource

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/tphummel/insight_hub/internal/csvio"
	"github.com/tphummel/insight_hub/internal/db"
	"github.com/tphummel/insight_hub/internal/history"
	"github.com/tphummel/insight_hub/internal/models"
	"github.com/tphummel/insight_hub/internal/summary"
)

// Local parses and aggregates uploads in-process and snapshots each dataset
// to SQLite, so restoring a history entry returns the exact records that
// were uploaded.
type Local struct {
	db    *db.DB
	store *history.Store
}

// NewLocal builds a local source over database, rehydrating the bounded
// history from the stored snapshots.
func NewLocal(database *db.DB) (*Local, error) {
	store := history.NewStore()
	entries, err := database.History(history.Bound)
	if err != nil {
		return nil, err
	}
	store.Replace(entries)
	return &Local{db: database, store: store}, nil
}

// Load parses the file as CSV, aggregates it, and records the snapshot. On
// any failure nothing is stored and the history is unchanged.
func (l *Local) Load(ctx context.Context, filename string, file io.Reader) (*LoadResult, error) {
	records, err := csvio.Parse(file)
	if err != nil {
		return nil, err
	}
	entry, err := l.save(filename, records, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return &LoadResult{
		DatasetID: entry.ID,
		Filename:  entry.Filename,
		Records:   records,
		Summary:   entry.Summary,
	}, nil
}

// Import stores already-materialized records as a dataset. Used to seed a
// fresh instance with demo data.
func (l *Local) Import(ctx context.Context, filename string, records []models.EquipmentRecord, uploadedAt time.Time) (models.UploadHistory, error) {
	return l.save(filename, records, uploadedAt)
}

func (l *Local) save(filename string, records []models.EquipmentRecord, uploadedAt time.Time) (models.UploadHistory, error) {
	entry := models.UploadHistory{
		ID:          uuid.New().String(),
		Filename:    filename,
		UploadedAt:  uploadedAt.Format(time.RFC3339),
		RecordCount: len(records),
		Summary:     summary.Summarize(records),
	}

	if err := l.db.SaveDataset(entry, records); err != nil {
		return models.UploadHistory{}, err
	}
	if err := l.db.Prune(history.Bound); err != nil {
		return models.UploadHistory{}, err
	}
	l.store.Record(entry)
	return entry, nil
}

// Restore returns the stored view of a past upload. Unknown ids yield
// history.ErrNotFound.
func (l *Local) Restore(ctx context.Context, id string) (*LoadResult, error) {
	entry, err := l.store.Select(id)
	if err != nil {
		return nil, err
	}

	records, err := l.db.GetRecords(id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, history.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &LoadResult{
		DatasetID: entry.ID,
		Filename:  entry.Filename,
		Records:   records,
		Summary:   entry.Summary,
	}, nil
}

// History returns the session history, newest first.
func (l *Local) History(ctx context.Context) ([]models.UploadHistory, error) {
	return l.store.List(), nil
}
