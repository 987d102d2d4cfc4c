// Package datasource provides the two interchangeable loading strategies
// behind the dashboard session: fully local (parse, aggregate, and persist
// in-process) and connected (delegate to the remote API). The strategy is
// chosen once at startup; shared logic never branches on mode.
package datasource

import (
	"context"
	"io"

	"github.com/tphummel/insight_hub/internal/models"
)

// LoadResult is a fully loaded dataset view: the records and the summary
// always arrive together, so callers can never present one without the
// other.
type LoadResult struct {
	DatasetID string
	Filename  string
	Records   []models.EquipmentRecord
	Summary   models.DataSummary
}

// Source loads datasets into the session. Implementations return typed
// errors (csvio.ParseError, history.ErrNotFound, hubapi.APIError) and leave
// no partial state behind on failure.
type Source interface {
	// Load ingests an uploaded CSV file and returns the resulting view.
	Load(ctx context.Context, filename string, file io.Reader) (*LoadResult, error)
	// Restore returns the view of a previously uploaded dataset by id.
	Restore(ctx context.Context, id string) (*LoadResult, error)
	// History returns the upload history, newest first.
	History(ctx context.Context) ([]models.UploadHistory, error)
}
