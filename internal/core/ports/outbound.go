package ports

import (
	"context"
	"io"

	"github.com/m-ovchinnikov/export-compliance/internal/core/domain"
)

// ShipmentRepository reads shipment master data. Read-only from the core's
// perspective.
type ShipmentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Shipment, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	// ProductCatalogVersion identifies the current catalog state for
	// requirement memoization. Any write to products must change it.
	ProductCatalogVersion(ctx context.Context) (string, error)
	GetParty(ctx context.Context, id string) (*domain.Party, error)
}

// DocumentStore persists document records. The core never deletes records.
type DocumentStore interface {
	ListByShipment(ctx context.Context, shipmentID string) ([]domain.DocumentRecord, error)
	Get(ctx context.Context, shipmentID string, key domain.DocumentKey) (*domain.DocumentRecord, error)
	Create(ctx context.Context, record *domain.DocumentRecord) error
	CreateAll(ctx context.Context, records []domain.DocumentRecord) error
	// Update writes the record only if the stored revision still matches
	// record.Revision, then bumps it. domain.ErrConcurrentModification on
	// mismatch.
	Update(ctx context.Context, record *domain.DocumentRecord) error
}

// RenderInput carries everything the renderer needs to produce a commercial
// document.
type RenderInput struct {
	Shipment       domain.Shipment
	Buyer          domain.Party
	Lines          []RenderLine
	DocumentNumber string
	IssueDate      string
	SignedBy       string
	Key            domain.DocumentKey
}

type RenderLine struct {
	Product  domain.Product
	Quantity float64
}

type RenderedFile struct {
	FileRef  string
	FileName string
}

// DocumentRenderer produces system-generated document files.
type DocumentRenderer interface {
	Render(ctx context.Context, input RenderInput) (RenderedFile, error)
}

// ObjectStorage stores version payloads.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// DocumentEvent describes a committed lifecycle mutation.
type DocumentEvent struct {
	ShipmentID string                `json:"shipment_id"`
	Key        domain.DocumentKey    `json:"key"`
	Action     string                `json:"action"`
	Status     domain.DocumentStatus `json:"status"`
	Version    int                   `json:"version,omitempty"`
}

// EventBus publishes and consumes shipment/document events.
type EventBus interface {
	PublishShipmentChanged(ctx context.Context, shipmentID string) error
	SubscribeShipmentChanged(ctx context.Context, handler func(context.Context, string) error) error
	PublishDocumentEvent(ctx context.Context, event DocumentEvent) error
}

// RequirementCache memoizes evaluated requirement sets keyed by shipment id
// and catalog version. Misses and failures both surface as (nil, false).
type RequirementCache interface {
	Get(ctx context.Context, shipmentID, catalogVersion string) (domain.RequirementSet, bool)
	Put(ctx context.Context, shipmentID, catalogVersion string, set domain.RequirementSet)
}

// FileInspector validates uploaded payloads before they are stored.
type FileInspector interface {
	Inspect(filename string, data []byte) error
}
