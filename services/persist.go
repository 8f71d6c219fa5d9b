package services

import (
	"context"
	"fmt"
	"log"

	"carwatch/models"
)

// PersistErrorKind tells whether a write failed at the batch or row level.
type PersistErrorKind string

const (
	PersistBatchFailed PersistErrorKind = "batch_failed"
	PersistRowFailed   PersistErrorKind = "row_failed"
)

type PersistError struct {
	Kind      PersistErrorKind
	ListingID string
	Err       error
}

func (e *PersistError) Error() string {
	if e.ListingID != "" {
		return fmt.Sprintf("persist: %s for listing %s: %v", e.Kind, e.ListingID, e.Err)
	}
	return fmt.Sprintf("persist: %s: %v", e.Kind, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// ListingWriter is the slice of the Postgres store the persister needs.
type ListingWriter interface {
	UpsertListing(ctx context.Context, l *models.Listing) (bool, error)
	UpsertListingBatch(ctx context.Context, listings []*models.Listing) ([]bool, error)
}

// Persister writes processed listings in batches, falling back to per-row
// writes when a batch fails so one bad row never sinks its batchmates.
type Persister struct {
	store     ListingWriter
	batchSize int
}

func NewPersister(store ListingWriter, batchSize int) *Persister {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Persister{store: store, batchSize: batchSize}
}

// Persist upserts the given listings and reports exact per-id outcomes.
// Duplicate ids within the input collapse to the last occurrence before any
// write, so a page re-listing the same car costs one upsert.
func (p *Persister) Persist(ctx context.Context, listings []*models.Listing) *models.PersistReport {
	report := models.NewPersistReport()
	deduped := dedupeByID(listings)

	for start := 0; start < len(deduped); start += p.batchSize {
		end := start + p.batchSize
		if end > len(deduped) {
			end = len(deduped)
		}
		p.persistBatch(ctx, deduped[start:end], report)

		if ctx.Err() != nil {
			break
		}
	}

	return report
}

func (p *Persister) persistBatch(ctx context.Context, batch []*models.Listing, report *models.PersistReport) {
	inserted, err := p.store.UpsertListingBatch(ctx, batch)
	if err == nil {
		for _, isNew := range inserted {
			if isNew {
				report.Inserted++
			} else {
				report.Updated++
			}
		}
		return
	}

	log.Printf("batch upsert of %d listings failed, retrying per row: %v", len(batch), err)

	for _, l := range batch {
		if ctx.Err() != nil {
			report.Failed[l.ID] = &PersistError{Kind: PersistRowFailed, ListingID: l.ID, Err: ctx.Err()}
			continue
		}
		isNew, rowErr := p.store.UpsertListing(ctx, l)
		if rowErr != nil {
			report.Failed[l.ID] = &PersistError{Kind: PersistRowFailed, ListingID: l.ID, Err: rowErr}
			continue
		}
		if isNew {
			report.Inserted++
		} else {
			report.Updated++
		}
	}
}

// dedupeByID keeps the last occurrence of each id, preserving first-seen
// order. Later cards on a page carry the freshest rendering of a listing.
func dedupeByID(listings []*models.Listing) []*models.Listing {
	index := make(map[string]int, len(listings))
	var out []*models.Listing
	for _, l := range listings {
		if i, ok := index[l.ID]; ok {
			out[i] = l
			continue
		}
		index[l.ID] = len(out)
		out = append(out, l)
	}
	return out
}
