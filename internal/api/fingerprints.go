package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/wolfeidau/fpconsole/internal/models"
)

// Fingerprints wraps the /fingerprints/ endpoints.
type Fingerprints struct {
	c Doer
}

// List returns fingerprint records filtered by params.
func (f *Fingerprints) List(ctx context.Context, params url.Values) (*models.Page[models.Fingerprint], error) {
	var page models.Page[models.Fingerprint]
	if err := f.c.Do(ctx, http.MethodGet, "/fingerprints/", params, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Search runs a server side search.
func (f *Fingerprints) Search(ctx context.Context, params url.Values) (*models.Page[models.Fingerprint], error) {
	var page models.Page[models.Fingerprint]
	if err := f.c.Do(ctx, http.MethodGet, "/fingerprints/search/", params, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Get returns one fingerprint record.
func (f *Fingerprints) Get(ctx context.Context, id int64) (*models.Fingerprint, error) {
	var fp models.Fingerprint
	if err := f.c.Do(ctx, http.MethodGet, "/fingerprints/"+itoa(id)+"/", nil, nil, &fp); err != nil {
		return nil, err
	}
	return &fp, nil
}

// Submit submits a single fingerprint record.
func (f *Fingerprints) Submit(ctx context.Context, fp *models.Fingerprint) (*models.Fingerprint, error) {
	var created models.Fingerprint
	if err := f.c.Do(ctx, http.MethodPost, "/fingerprints/submit/", nil, fp, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// SubmitBatch submits many fingerprint records in one call. The batch is posted as
// given, usually a []models.Fingerprint, and the backend summary is returned untouched.
func (f *Fingerprints) SubmitBatch(ctx context.Context, batch any) (map[string]any, error) {
	var summary map[string]any
	if err := f.c.Do(ctx, http.MethodPost, "/fingerprints/batch-submit/", nil, batch, &summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// Approved lists records that passed review.
func (f *Fingerprints) Approved(ctx context.Context, params url.Values) (*models.Page[models.Fingerprint], error) {
	var page models.Page[models.Fingerprint]
	if err := f.c.Do(ctx, http.MethodGet, "/fingerprints/approved/", params, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Pending lists the admin review queue.
func (f *Fingerprints) Pending(ctx context.Context, params url.Values) (*models.Page[models.Fingerprint], error) {
	var page models.Page[models.Fingerprint]
	if err := f.c.Do(ctx, http.MethodGet, "/fingerprints/pending/", params, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Approve records an admin review decision.
func (f *Fingerprints) Approve(ctx context.Context, id int64, decision models.ReviewDecision) (*models.Fingerprint, error) {
	var fp models.Fingerprint
	if err := f.c.Do(ctx, http.MethodPut, "/fingerprints/"+itoa(id)+"/approve/", nil, decision, &fp); err != nil {
		return nil, err
	}
	return &fp, nil
}

// Update partially updates a record.
func (f *Fingerprints) Update(ctx context.Context, id int64, fields map[string]any) (*models.Fingerprint, error) {
	var fp models.Fingerprint
	if err := f.c.Do(ctx, http.MethodPatch, "/fingerprints/"+itoa(id)+"/", nil, fields, &fp); err != nil {
		return nil, err
	}
	return &fp, nil
}

// Delete deletes a record.
func (f *Fingerprints) Delete(ctx context.Context, id int64) error {
	return f.c.Do(ctx, http.MethodDelete, "/fingerprints/"+itoa(id)+"/", nil, nil, nil)
}
