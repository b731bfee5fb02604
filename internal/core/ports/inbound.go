package ports

import (
	"context"
	"io"

	"github.com/m-ovchinnikov/export-compliance/internal/core/domain"
)

// RequirementEvaluator is the inbound contract for requirement computation.
type RequirementEvaluator interface {
	EvaluateByID(ctx context.Context, shipmentID string) (domain.RequirementSet, error)
}

// DocumentReconciler aligns a shipment's document catalogue with its
// evaluated requirements.
type DocumentReconciler interface {
	ReconcileByID(ctx context.Context, shipmentID string) ([]domain.DocumentRecord, bool, error)
}

// GenerateMetadata is the caller-supplied envelope for a system-rendered
// document version.
type GenerateMetadata struct {
	DocumentNumber string
	IssueDate      string
	SignedBy       string
	Actor          string
}

// DocumentLifecycle exposes the four state-changing operations over a single
// document record, addressed by (shipment id, document key).
type DocumentLifecycle interface {
	Generate(ctx context.Context, shipmentID string, key domain.DocumentKey, meta GenerateMetadata) (*domain.DocumentRecord, error)
	UploadVersion(ctx context.Context, shipmentID string, key domain.DocumentKey, filename string, body io.Reader, note, actor string) (*domain.DocumentRecord, error)
	SetStatus(ctx context.Context, shipmentID string, key domain.DocumentKey, status domain.DocumentStatus, note string) (*domain.DocumentRecord, error)
	SetCurrentVersion(ctx context.Context, shipmentID string, key domain.DocumentKey, versionNumber int) (*domain.DocumentRecord, error)
}

// DocumentReader is the inbound read model for the document catalogue.
type DocumentReader interface {
	ListByShipment(ctx context.Context, shipmentID string) ([]domain.DocumentRecord, error)
}
