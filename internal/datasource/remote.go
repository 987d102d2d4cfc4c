package datasource

import (
	"context"
	"io"

	"github.com/tphummel/insight_hub/internal/hubapi"
	"github.com/tphummel/insight_hub/internal/models"
)

// Remote delegates parsing, aggregation, and persistence to the remote API.
// Each load is only complete once both the upload response and the record
// fetch for the returned id have succeeded.
type Remote struct {
	client *hubapi.Client
}

// NewRemote builds a remote source over an authenticated client.
func NewRemote(client *hubapi.Client) *Remote {
	return &Remote{client: client}
}

// Load uploads the raw file, then fetches the record list for the dataset
// id the upload returned. A failure in either step surfaces as-is; nothing
// is cached locally.
func (r *Remote) Load(ctx context.Context, filename string, file io.Reader) (*LoadResult, error) {
	res, err := r.client.Upload(ctx, filename, file)
	if err != nil {
		return nil, err
	}

	records, err := r.client.Records(ctx, string(res.ID))
	if err != nil {
		return nil, err
	}

	return &LoadResult{
		DatasetID: string(res.ID),
		Filename:  filename,
		Records:   records,
		Summary:   res.Summary,
	}, nil
}

// Restore re-fetches a past dataset's summary and records from the remote.
func (r *Remote) Restore(ctx context.Context, id string) (*LoadResult, error) {
	sum, err := r.client.DatasetSummary(ctx, id)
	if err != nil {
		return nil, err
	}

	records, err := r.client.Records(ctx, id)
	if err != nil {
		return nil, err
	}

	return &LoadResult{
		DatasetID: id,
		Records:   records,
		Summary:   sum,
	}, nil
}

// History fetches the remote upload history.
func (r *Remote) History(ctx context.Context) ([]models.UploadHistory, error) {
	return r.client.History(ctx)
}
