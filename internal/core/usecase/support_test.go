package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/m-ovchinnikov/export-compliance/internal/core/domain"
	"github.com/m-ovchinnikov/export-compliance/internal/core/ports"
)

func testRuleTable() domain.RuleTable {
	return domain.RuleTable{
		HSPrefixRules: []domain.HSPrefixRule{
			{
				Prefixes: []string{"06", "07", "08", "09", "10", "11", "12", "13", "14"},
				Document: domain.KeyPhytosanitary,
			},
		},
		InsuredIncoterms: []string{"CIF", "CIP"},
		DeclarationModes: []domain.TransportMode{domain.ModeSea, domain.ModeAir},
	}
}

type shipmentRepoFake struct {
	shipment       *domain.Shipment
	products       []domain.Product
	parties        map[string]domain.Party
	catalogVersion string
	getErr         error
	catalogCalls   int
}

func (f *shipmentRepoFake) GetByID(context.Context, string) (*domain.Shipment, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.shipment == nil {
		return nil, domain.ErrShipmentNotFound
	}
	copyShipment := *f.shipment
	return &copyShipment, nil
}

func (f *shipmentRepoFake) ListProducts(context.Context) ([]domain.Product, error) {
	f.catalogCalls++
	return f.products, nil
}

func (f *shipmentRepoFake) ProductCatalogVersion(context.Context) (string, error) {
	if f.catalogVersion == "" {
		return "", fmt.Errorf("catalog version unavailable")
	}
	return f.catalogVersion, nil
}

func (f *shipmentRepoFake) GetParty(_ context.Context, id string) (*domain.Party, error) {
	party, ok := f.parties[id]
	if !ok {
		return nil, domain.ErrPartyNotFound
	}
	return &party, nil
}

// docStoreFake keeps records keyed by (shipment, key) and mimics the
// store's optimistic revision check on Update.
type docStoreFake struct {
	mu        sync.Mutex
	records   map[string]*domain.DocumentRecord
	listErr   error
	updateErr error
}

func newDocStoreFake() *docStoreFake {
	return &docStoreFake{records: make(map[string]*domain.DocumentRecord)}
}

func storeKey(shipmentID string, key domain.DocumentKey) string {
	return shipmentID + "/" + string(key)
}

func (f *docStoreFake) ListByShipment(_ context.Context, shipmentID string) ([]domain.DocumentRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DocumentRecord
	for _, record := range f.records {
		if record.ShipmentID == shipmentID {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (f *docStoreFake) Get(_ context.Context, shipmentID string, key domain.DocumentKey) (*domain.DocumentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[storeKey(shipmentID, key)]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	copyRecord := *record
	copyRecord.Versions = append([]domain.DocumentVersion(nil), record.Versions...)
	return &copyRecord, nil
}

func (f *docStoreFake) Create(_ context.Context, record *domain.DocumentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copyRecord := *record
	f.records[storeKey(record.ShipmentID, record.Key)] = &copyRecord
	return nil
}

func (f *docStoreFake) CreateAll(ctx context.Context, records []domain.DocumentRecord) error {
	for i := range records {
		if err := f.Create(ctx, &records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *docStoreFake) Update(_ context.Context, record *domain.DocumentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	stored, ok := f.records[storeKey(record.ShipmentID, record.Key)]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	if stored.Revision != record.Revision {
		return domain.ErrConcurrentModification
	}
	record.Revision++
	copyRecord := *record
	copyRecord.Versions = append([]domain.DocumentVersion(nil), record.Versions...)
	f.records[storeKey(record.ShipmentID, record.Key)] = &copyRecord
	return nil
}

type rendererFake struct {
	rendered ports.RenderedFile
	err      error
	calls    int
	lastIn   ports.RenderInput
}

func (f *rendererFake) Render(_ context.Context, input ports.RenderInput) (ports.RenderedFile, error) {
	f.calls++
	f.lastIn = input
	if f.err != nil {
		return ports.RenderedFile{}, f.err
	}
	return f.rendered, nil
}

type storageFake struct {
	saved map[string][]byte
	err   error
}

func newStorageFake() *storageFake {
	return &storageFake{saved: make(map[string][]byte)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	payload, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.saved[key] = payload
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	delete(f.saved, key)
	return nil
}

type inspectorFake struct {
	err error
}

func (f *inspectorFake) Inspect(string, []byte) error { return f.err }

type eventBusFake struct {
	mu         sync.Mutex
	events     []ports.DocumentEvent
	publishErr error
}

func (f *eventBusFake) PublishShipmentChanged(context.Context, string) error { return nil }

func (f *eventBusFake) SubscribeShipmentChanged(context.Context, func(context.Context, string) error) error {
	return nil
}

func (f *eventBusFake) PublishDocumentEvent(_ context.Context, event ports.DocumentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.events = append(f.events, event)
	return nil
}

type cacheFake struct {
	entries map[string]domain.RequirementSet
	gets    int
	hits    int
	puts    int
}

func newCacheFake() *cacheFake {
	return &cacheFake{entries: make(map[string]domain.RequirementSet)}
}

func (f *cacheFake) Get(_ context.Context, shipmentID, catalogVersion string) (domain.RequirementSet, bool) {
	f.gets++
	set, ok := f.entries[shipmentID+"@"+catalogVersion]
	if ok {
		f.hits++
	}
	return set, ok
}

func (f *cacheFake) Put(_ context.Context, shipmentID, catalogVersion string, set domain.RequirementSet) {
	f.puts++
	f.entries[shipmentID+"@"+catalogVersion] = set
}

type evaluatorFake struct {
	set domain.RequirementSet
	err error
}

func (f *evaluatorFake) EvaluateByID(context.Context, string) (domain.RequirementSet, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.set, nil
}
