package excel

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/m-ovchinnikov/export-compliance/internal/core/domain"
	"github.com/m-ovchinnikov/export-compliance/internal/core/ports"
)

type storageFake struct {
	saved map[string][]byte
	err   error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	payload, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = make(map[string][]byte)
	}
	f.saved[key] = payload
	return nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	delete(f.saved, key)
	return nil
}

func renderInput(key domain.DocumentKey) ports.RenderInput {
	return ports.RenderInput{
		Shipment: domain.Shipment{
			ID:          "shp-1",
			Reference:   "EXP-2026-001",
			Origin:      domain.RoutePoint{Country: "NL", City: "Rotterdam"},
			Destination: domain.RoutePoint{Country: "BR", City: "Santos"},
			Incoterm:    "CIF",
		},
		Buyer: domain.Party{ID: "pty-1", Name: "Importadora Ltda", Country: "BR"},
		Lines: []ports.RenderLine{
			{Product: domain.Product{Name: "Tulip bulbs", HSCode: "0601.10", UnitPrice: 12.5, UnitWeightKG: 0.2}, Quantity: 100},
			{Product: domain.Product{Name: "Rose stems", HSCode: "0603.11", UnitPrice: 2.0, UnitWeightKG: 0.05}, Quantity: 500},
		},
		DocumentNumber: "INV-001",
		IssueDate:      "2026-08-01",
		SignedBy:       "J. Visser",
		Key:            key,
	}
}

func TestRenderInvoiceProducesWorkbook(t *testing.T) {
	storage := &storageFake{}
	renderer := New(storage, nil)

	rendered, err := renderer.Render(context.Background(), renderInput(domain.KeyInvoice))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasSuffix(rendered.FileName, ".xlsx") {
		t.Fatalf("file name %q", rendered.FileName)
	}
	if !strings.HasPrefix(rendered.FileRef, "rendered/shp-1/") {
		t.Fatalf("file ref %q", rendered.FileRef)
	}

	payload, ok := storage.saved[rendered.FileRef]
	if !ok {
		t.Fatalf("payload not stored under %q", rendered.FileRef)
	}
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("stored payload is not a valid workbook: %v", err)
	}
	defer f.Close()

	title, err := f.GetCellValue(sheet, "A1")
	if err != nil || title != "COMMERCIAL INVOICE" {
		t.Fatalf("title %q err=%v", title, err)
	}
	total, err := f.GetCellValue(sheet, "E15")
	if err != nil {
		t.Fatalf("read total: %v", err)
	}
	if total != "2250" {
		t.Fatalf("invoice total %q, want 2250", total)
	}
}

func TestRenderPackingListUsesWeights(t *testing.T) {
	storage := &storageFake{}
	renderer := New(storage, nil)

	rendered, err := renderer.Render(context.Background(), renderInput(domain.KeyPackingList))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(storage.saved[rendered.FileRef]))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	title, _ := f.GetCellValue(sheet, "A1")
	if title != "PACKING LIST" {
		t.Fatalf("title %q", title)
	}
	totalWeight, _ := f.GetCellValue(sheet, "E10")
	if totalWeight != "45" {
		t.Fatalf("total weight %q, want 45", totalWeight)
	}
}

func TestRenderRejectsUnsupportedKey(t *testing.T) {
	renderer := New(&storageFake{}, nil)
	if _, err := renderer.Render(context.Background(), renderInput(domain.KeyBillOfLading)); err == nil {
		t.Fatalf("expected error for key without a renderer")
	}
}

func TestRenderPropagatesStorageFailure(t *testing.T) {
	renderer := New(&storageFake{err: fmt.Errorf("disk full")}, nil)
	if _, err := renderer.Render(context.Background(), renderInput(domain.KeyInvoice)); err == nil {
		t.Fatalf("expected storage failure to propagate")
	}
}
