package usecase

import (
	"context"
	"testing"

	"github.com/m-ovchinnikov/export-compliance/internal/core/domain"
)

func TestReconcileFreshShipmentCreatesTargetSet(t *testing.T) {
	evaluator := &evaluatorFake{
		set: domain.NewRequirementSet(domain.KeyPhytosanitary, domain.KeyCertificateOrigin),
	}
	store := newDocStoreFake()
	uc := NewReconcileUseCase(evaluator, store, NewRecordLocker())

	records, created, err := uc.ReconcileByID(context.Background(), "shp-1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !created {
		t.Fatalf("expected creations on a fresh shipment")
	}
	if len(records) != 4 {
		t.Fatalf("got %d records, want 4 (requirements + invoice + packing list)", len(records))
	}

	seen := domain.NewRequirementSet()
	for _, record := range records {
		if record.Status != domain.StatusRequired {
			t.Errorf("%s created with status %q, want %q", record.Key, record.Status, domain.StatusRequired)
		}
		if len(record.Versions) != 0 || record.CurrentVersion != 0 {
			t.Errorf("%s created with version state", record.Key)
		}
		if record.ID == "" {
			t.Errorf("%s created without id", record.Key)
		}
		seen.Add(record.Key)
	}
	want := domain.NewRequirementSet(
		domain.KeyInvoice, domain.KeyPackingList,
		domain.KeyPhytosanitary, domain.KeyCertificateOrigin,
	)
	if !seen.Equal(want) {
		t.Fatalf("got keys %v, want %v", seen.Keys(), want.Keys())
	}
}

func TestReconcileIdempotent(t *testing.T) {
	evaluator := &evaluatorFake{set: domain.NewRequirementSet(domain.KeyBillOfLading)}
	store := newDocStoreFake()
	uc := NewReconcileUseCase(evaluator, store, NewRecordLocker())

	first, created, err := uc.ReconcileByID(context.Background(), "shp-1")
	if err != nil || !created {
		t.Fatalf("first reconcile: created=%v err=%v", created, err)
	}
	second, created, err := uc.ReconcileByID(context.Background(), "shp-1")
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if created {
		t.Fatalf("second reconcile must create nothing")
	}
	if len(first) != len(second) {
		t.Fatalf("record set changed between runs: %d vs %d", len(first), len(second))
	}
}

func TestReconcileKeepsStaleRecords(t *testing.T) {
	store := newDocStoreFake()
	stale := domain.DocumentRecord{
		ID:         "rec-stale",
		ShipmentID: "shp-1",
		Key:        domain.KeyInsurance,
		Status:     domain.StatusSigned,
	}
	if err := store.Create(context.Background(), &stale); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	// Rules no longer require insurance; the record must survive anyway.
	evaluator := &evaluatorFake{set: domain.NewRequirementSet()}
	uc := NewReconcileUseCase(evaluator, store, NewRecordLocker())

	records, _, err := uc.ReconcileByID(context.Background(), "shp-1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	found := false
	for _, record := range records {
		if record.Key == domain.KeyInsurance {
			found = true
			if record.Status != domain.StatusSigned {
				t.Fatalf("stale record was mutated: %q", record.Status)
			}
		}
	}
	if !found {
		t.Fatalf("stale requirement was removed")
	}
}

func TestReconcileCommercialDocsAlwaysTracked(t *testing.T) {
	evaluator := &evaluatorFake{set: domain.NewRequirementSet()}
	store := newDocStoreFake()
	uc := NewReconcileUseCase(evaluator, store, NewRecordLocker())

	records, created, err := uc.ReconcileByID(context.Background(), "shp-1")
	if err != nil || !created {
		t.Fatalf("reconcile: created=%v err=%v", created, err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want invoice + packing list", len(records))
	}
}

func TestReconcilePropagatesEvaluationError(t *testing.T) {
	evaluator := &evaluatorFake{err: domain.ErrShipmentNotFound}
	uc := NewReconcileUseCase(evaluator, newDocStoreFake(), NewRecordLocker())

	if _, _, err := uc.ReconcileByID(context.Background(), "shp-missing"); !domain.IsKind(err, domain.ErrShipmentNotFound) {
		t.Fatalf("expected shipment-not-found, got %v", err)
	}
}
