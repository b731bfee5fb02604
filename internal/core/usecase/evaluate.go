package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/m-ovchinnikov/export-compliance/internal/core/domain"
	"github.com/m-ovchinnikov/export-compliance/internal/core/ports"
)

// EvaluateRequirements is the pure rules evaluator: same shipment, catalog
// and rule table always produce the same requirement set. Items whose
// product no longer exists in the catalog are skipped, never fatal.
func EvaluateRequirements(shipment *domain.Shipment, products []domain.Product, table domain.RuleTable) domain.RequirementSet {
	set := domain.NewRequirementSet()

	if shipment.CrossBorder() {
		set.Add(domain.KeyCertificateOrigin)
		if table.DeclarationMode(shipment.Mode) {
			set.Add(domain.KeyCustomsExport)
		}
	}
	if shipment.Mode == domain.ModeSea {
		set.Add(domain.KeyBillOfLading)
	}
	if table.InsuredIncoterm(shipment.Incoterm) {
		set.Add(domain.KeyInsurance)
	}

	index := domain.ProductIndex(products)
	for _, item := range shipment.Items {
		product, ok := index[item.ProductID]
		if !ok {
			continue
		}
		for _, rule := range table.HSPrefixRules {
			if rule.Matches(product.HSCode) {
				set.Add(rule.Document)
			}
		}
	}
	return set
}

// EvaluateUseCase resolves a shipment and the product catalog, then runs the
// pure evaluator, memoizing results per shipment and input state.
type EvaluateUseCase struct {
	shipments ports.ShipmentRepository
	cache     ports.RequirementCache
	table     domain.RuleTable
}

func NewEvaluateUseCase(
	shipments ports.ShipmentRepository,
	cache ports.RequirementCache,
	table domain.RuleTable,
) *EvaluateUseCase {
	return &EvaluateUseCase{
		shipments: shipments,
		cache:     cache,
		table:     table,
	}
}

func (uc *EvaluateUseCase) EvaluateByID(ctx context.Context, shipmentID string) (domain.RequirementSet, error) {
	shipment, err := uc.shipments.GetByID(ctx, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("resolve shipment: %w", err)
	}

	// The key must change whenever either evaluation input changes: the
	// catalog token covers product writes, UpdatedAt covers shipment edits.
	inputVersion := ""
	if uc.cache != nil {
		catalogVersion, err := uc.shipments.ProductCatalogVersion(ctx)
		if err == nil {
			inputVersion = catalogVersion + "|" + shipment.UpdatedAt.UTC().Format(time.RFC3339Nano)
			if set, ok := uc.cache.Get(ctx, shipmentID, inputVersion); ok {
				return set, nil
			}
		}
	}

	products, err := uc.shipments.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	set := EvaluateRequirements(shipment, products, uc.table)
	if uc.cache != nil && inputVersion != "" {
		uc.cache.Put(ctx, shipmentID, inputVersion, set)
	}
	return set, nil
}
