package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/m-ovchinnikov/export-compliance/internal/core/domain"
	"github.com/m-ovchinnikov/export-compliance/internal/core/ports"
)

// ReconcileUseCase keeps a shipment's document catalogue aligned with its
// evaluated requirements. The two commercial documents are tracked
// unconditionally; records for keys the rules no longer require are left
// untouched.
type ReconcileUseCase struct {
	evaluator ports.RequirementEvaluator
	documents ports.DocumentStore
	locker    *RecordLocker
	now       func() time.Time
}

func NewReconcileUseCase(
	evaluator ports.RequirementEvaluator,
	documents ports.DocumentStore,
	locker *RecordLocker,
) *ReconcileUseCase {
	return &ReconcileUseCase{
		evaluator: evaluator,
		documents: documents,
		locker:    locker,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ReconcileByID returns the full record set for the shipment and whether any
// record was newly created. Calling it again on its own output creates
// nothing.
func (uc *ReconcileUseCase) ReconcileByID(ctx context.Context, shipmentID string) ([]domain.DocumentRecord, bool, error) {
	required, err := uc.evaluator.EvaluateByID(ctx, shipmentID)
	if err != nil {
		return nil, false, fmt.Errorf("evaluate requirements: %w", err)
	}

	unlock := uc.locker.LockShipment(shipmentID)
	defer unlock()

	existing, err := uc.documents.ListByShipment(ctx, shipmentID)
	if err != nil {
		return nil, false, fmt.Errorf("list documents: %w", err)
	}

	present := domain.NewRequirementSet()
	for _, record := range existing {
		present.Add(record.Key)
	}

	target := domain.NewRequirementSet(domain.KeyInvoice, domain.KeyPackingList)
	for key := range required {
		target.Add(key)
	}

	var created []domain.DocumentRecord
	now := uc.now()
	for _, key := range target.Keys() {
		if present.Contains(key) {
			continue
		}
		created = append(created, domain.DocumentRecord{
			ID:         uuid.NewString(),
			ShipmentID: shipmentID,
			Key:        key,
			Status:     domain.StatusRequired,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	if len(created) == 0 {
		return existing, false, nil
	}
	if err := uc.documents.CreateAll(ctx, created); err != nil {
		return nil, false, fmt.Errorf("persist reconciled documents: %w", err)
	}
	return append(existing, created...), true, nil
}
