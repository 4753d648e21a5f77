package storage

import (
	"context"
	"errors"

	"canalpro-publisher/models"
)

// ErrNotFound is returned when no property has the requested code.
var ErrNotFound = errors.New("property not found")

// PropertyStore is the interface any storage backend for properties and
// their drafts must satisfy.
type PropertyStore interface {
	UpsertProperty(ctx context.Context, p *models.PropertyRecord) error
	GetProperty(ctx context.Context, codigo string) (*models.PropertyRecord, error)
	ListProperties(ctx context.Context) ([]*models.PropertySummary, error)
	EnsureDraft(ctx context.Context, codigo string) (*models.ListingDraft, error)
	SaveDraft(ctx context.Context, d *models.ListingDraft) error
	MarkPublished(ctx context.Context, codigo string) error
	FetchAll(ctx context.Context) ([]*models.PropertyRecord, error)
	FetchDrafts(ctx context.Context) (map[string]*models.ListingDraft, error)
	Close() error
}

// PropertyExporter is the interface for flat-file exports of stored data.
type PropertyExporter interface {
	WriteProperties(records []*models.PropertyRecord, drafts map[string]*models.ListingDraft) error
	Close() error
}
