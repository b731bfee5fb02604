package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-ovchinnikov/export-compliance/internal/core/domain"
	"github.com/m-ovchinnikov/export-compliance/internal/core/ports"
)

// LifecycleUseCase implements the four state-changing operations over a
// single document record. Every operation runs under the record's lock and
// commits through the store's optimistic revision check, so a concurrent
// reader never sees a half-applied mutation.
type LifecycleUseCase struct {
	shipments ports.ShipmentRepository
	documents ports.DocumentStore
	renderer  ports.DocumentRenderer
	storage   ports.ObjectStorage
	inspector ports.FileInspector
	events    ports.EventBus
	locker    *RecordLocker
	now       func() time.Time
}

func NewLifecycleUseCase(
	shipments ports.ShipmentRepository,
	documents ports.DocumentStore,
	renderer ports.DocumentRenderer,
	storage ports.ObjectStorage,
	inspector ports.FileInspector,
	events ports.EventBus,
	locker *RecordLocker,
) *LifecycleUseCase {
	return &LifecycleUseCase{
		shipments: shipments,
		documents: documents,
		renderer:  renderer,
		storage:   storage,
		inspector: inspector,
		events:    events,
		locker:    locker,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Generate renders a new version of a system-renderable document from
// shipment, product and party data plus the caller-supplied metadata.
func (uc *LifecycleUseCase) Generate(
	ctx context.Context,
	shipmentID string,
	key domain.DocumentKey,
	meta ports.GenerateMetadata,
) (*domain.DocumentRecord, error) {
	if !key.SystemRenderable() {
		return nil, fmt.Errorf("generate %s: %w", key, domain.ErrUnsupportedDocumentKey)
	}

	unlock := uc.locker.LockRecord(shipmentID, key)
	defer unlock()

	record, err := uc.documents.Get(ctx, shipmentID, key)
	if err != nil {
		return nil, fmt.Errorf("load document record: %w", err)
	}

	shipment, err := uc.shipments.GetByID(ctx, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("load shipment: %w", err)
	}
	if shipment.BuyerPartyID == "" {
		return nil, fmt.Errorf("generate %s: shipment has no buyer: %w", key, domain.ErrMissingRequiredParty)
	}
	buyer, err := uc.shipments.GetParty(ctx, shipment.BuyerPartyID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrMissingRequiredParty, "resolve buyer party", err)
	}

	lines, err := uc.resolveLines(ctx, shipment)
	if err != nil {
		return nil, err
	}

	rendered, err := uc.renderer.Render(ctx, ports.RenderInput{
		Shipment:       *shipment,
		Buyer:          *buyer,
		Lines:          lines,
		DocumentNumber: meta.DocumentNumber,
		IssueDate:      meta.IssueDate,
		SignedBy:       meta.SignedBy,
		Key:            key,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrRenderFailed, "render "+string(key), err)
	}

	version := record.AppendVersion(domain.DocumentVersion{
		CreatedAt: uc.now(),
		CreatedBy: meta.Actor,
		FileRef:   rendered.FileRef,
		FileName:  rendered.FileName,
	})
	if err := uc.documents.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("commit generated version: %w", err)
	}

	uc.publish(ctx, ports.DocumentEvent{
		ShipmentID: shipmentID,
		Key:        key,
		Action:     "generated",
		Status:     record.Status,
		Version:    version.Number,
	})
	return record, nil
}

// UploadVersion accepts an externally produced file for any document key.
func (uc *LifecycleUseCase) UploadVersion(
	ctx context.Context,
	shipmentID string,
	key domain.DocumentKey,
	filename string,
	body io.Reader,
	note, actor string,
) (*domain.DocumentRecord, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("upload %s: empty file: %w", key, domain.ErrInvalidInput)
	}
	if uc.inspector != nil {
		if err := uc.inspector.Inspect(filename, data); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "inspect upload", err)
		}
	}

	unlock := uc.locker.LockRecord(shipmentID, key)
	defer unlock()

	record, err := uc.documents.Get(ctx, shipmentID, key)
	if err != nil {
		return nil, fmt.Errorf("load document record: %w", err)
	}

	next := len(record.Versions) + 1
	storageKey := fmt.Sprintf("%s/%s/v%d_%s", shipmentID, key, next, sanitizeFilename(filename))
	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("store upload payload: %w", err)
	}

	version := record.AppendVersion(domain.DocumentVersion{
		CreatedAt: uc.now(),
		CreatedBy: actor,
		FileRef:   storageKey,
		FileName:  filename,
		Note:      note,
	})
	if err := uc.documents.Update(ctx, record); err != nil {
		// The blob is unreferenced without the commit; drop it so a retry
		// does not leave orphans behind.
		if delErr := uc.storage.Delete(ctx, storageKey); delErr != nil {
			slog.Warn("delete orphaned upload", "key", storageKey, "error", delErr)
		}
		return nil, fmt.Errorf("commit uploaded version: %w", err)
	}

	uc.publish(ctx, ports.DocumentEvent{
		ShipmentID: shipmentID,
		Key:        key,
		Action:     "uploaded",
		Status:     record.Status,
		Version:    version.Number,
	})
	return record, nil
}

// SetStatus transitions the record's status directly. Approval requires at
// least one version; the note, when present, attaches to the current version.
func (uc *LifecycleUseCase) SetStatus(
	ctx context.Context,
	shipmentID string,
	key domain.DocumentKey,
	status domain.DocumentStatus,
	note string,
) (*domain.DocumentRecord, error) {
	// required means the record has no history yet; reconciliation assigns
	// it at creation and it is never re-enterable.
	if status == domain.StatusRequired {
		return nil, fmt.Errorf("set status %s on %s: %w", status, key, domain.ErrInvalidInput)
	}

	unlock := uc.locker.LockRecord(shipmentID, key)
	defer unlock()

	record, err := uc.documents.Get(ctx, shipmentID, key)
	if err != nil {
		return nil, fmt.Errorf("load document record: %w", err)
	}
	if status.Approved() && record.CurrentVersion == 0 {
		return nil, fmt.Errorf("approve %s: %w", key, domain.ErrNoVersionToApprove)
	}

	record.Status = status
	record.UpdatedAt = uc.now()
	if note != "" {
		if current := record.Version(record.CurrentVersion); current != nil {
			current.Note = note
		}
	}
	if err := uc.documents.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("commit status change: %w", err)
	}

	uc.publish(ctx, ports.DocumentEvent{
		ShipmentID: shipmentID,
		Key:        key,
		Action:     "status_changed",
		Status:     record.Status,
		Version:    record.CurrentVersion,
	})
	return record, nil
}

// SetCurrentVersion repoints the authoritative version without touching
// history, so an older version can be restored as current.
func (uc *LifecycleUseCase) SetCurrentVersion(
	ctx context.Context,
	shipmentID string,
	key domain.DocumentKey,
	versionNumber int,
) (*domain.DocumentRecord, error) {
	unlock := uc.locker.LockRecord(shipmentID, key)
	defer unlock()

	record, err := uc.documents.Get(ctx, shipmentID, key)
	if err != nil {
		return nil, fmt.Errorf("load document record: %w", err)
	}
	if record.Version(versionNumber) == nil {
		return nil, fmt.Errorf("restore %s version %d: %w", key, versionNumber, domain.ErrVersionNotFound)
	}

	record.CurrentVersion = versionNumber
	record.UpdatedAt = uc.now()
	if err := uc.documents.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("commit current version change: %w", err)
	}

	uc.publish(ctx, ports.DocumentEvent{
		ShipmentID: shipmentID,
		Key:        key,
		Action:     "version_restored",
		Status:     record.Status,
		Version:    versionNumber,
	})
	return record, nil
}

func (uc *LifecycleUseCase) resolveLines(ctx context.Context, shipment *domain.Shipment) ([]ports.RenderLine, error) {
	products, err := uc.shipments.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	index := domain.ProductIndex(products)

	lines := make([]ports.RenderLine, 0, len(shipment.Items))
	for _, item := range shipment.Items {
		product, ok := index[item.ProductID]
		if !ok {
			// Rendering needs complete data; unlike evaluation this is fatal.
			return nil, fmt.Errorf("line item product %s: %w", item.ProductID, domain.ErrProductNotFound)
		}
		lines = append(lines, ports.RenderLine{Product: product, Quantity: item.Quantity})
	}
	return lines, nil
}

// publish sends the event after the record is committed; delivery failures
// are logged, not surfaced, because the mutation already happened.
func (uc *LifecycleUseCase) publish(ctx context.Context, event ports.DocumentEvent) {
	if uc.events == nil {
		return
	}
	if err := uc.events.PublishDocumentEvent(ctx, event); err != nil {
		slog.Warn("document_event_publish_failed",
			"shipment_id", event.ShipmentID,
			"key", event.Key,
			"action", event.Action,
			"error", err,
		)
	}
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
