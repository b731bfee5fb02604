// Package excel renders the system-generated commercial documents as xlsx
// workbooks and hands the payload to object storage.
package excel

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/m-ovchinnikov/export-compliance/internal/core/domain"
	"github.com/m-ovchinnikov/export-compliance/internal/core/ports"
	"github.com/m-ovchinnikov/export-compliance/internal/infrastructure/resilience"
)

const sheet = "Sheet1"

type Renderer struct {
	storage  ports.ObjectStorage
	executor *resilience.Executor
}

func New(storage ports.ObjectStorage, executor *resilience.Executor) *Renderer {
	return &Renderer{storage: storage, executor: executor}
}

func (r *Renderer) Render(ctx context.Context, input ports.RenderInput) (ports.RenderedFile, error) {
	var buf *bytes.Buffer
	var err error

	switch input.Key {
	case domain.KeyInvoice:
		buf, err = renderInvoice(input)
	case domain.KeyPackingList:
		buf, err = renderPackingList(input)
	default:
		return ports.RenderedFile{}, fmt.Errorf("no renderer for document key %q", input.Key)
	}
	if err != nil {
		return ports.RenderedFile{}, fmt.Errorf("build %s workbook: %w", input.Key, err)
	}

	fileName := suggestedFileName(input)
	fileRef := fmt.Sprintf("rendered/%s/%s_%s", input.Shipment.ID, uuid.NewString(), fileName)

	save := func(ctx context.Context) error {
		return r.storage.Save(ctx, fileRef, bytes.NewReader(buf.Bytes()))
	}
	if r.executor != nil {
		err = r.executor.Execute(ctx, "renderer.save", save, classifySaveError)
	} else {
		err = save(ctx)
	}
	if err != nil {
		return ports.RenderedFile{}, fmt.Errorf("store rendered document: %w", err)
	}
	return ports.RenderedFile{FileRef: fileRef, FileName: fileName}, nil
}

func suggestedFileName(input ports.RenderInput) string {
	number := strings.TrimSpace(input.DocumentNumber)
	if number == "" {
		number = input.Shipment.Reference
	}
	number = strings.ReplaceAll(number, "/", "-")
	return fmt.Sprintf("%s_%s.xlsx", string(input.Key), number)
}

func renderInvoice(input ports.RenderInput) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	setHeader(f, "COMMERCIAL INVOICE", input)
	writeCells(f, [][]any{
		{"A6", "Bill To:"},
		{"B6", input.Buyer.Name},
		{"B7", input.Buyer.Address},
		{"B8", input.Buyer.Country},
		{"B9", input.Buyer.TaxID},
	})

	headerRow := 11
	writeCells(f, [][]any{
		{cell("A", headerRow), "Description"},
		{cell("B", headerRow), "HS Code"},
		{cell("C", headerRow), "Quantity"},
		{cell("D", headerRow), "Unit Price"},
		{cell("E", headerRow), "Amount"},
	})

	total := 0.0
	for i, line := range input.Lines {
		row := headerRow + 1 + i
		amount := line.Quantity * line.Product.UnitPrice
		total += amount
		writeCells(f, [][]any{
			{cell("A", row), line.Product.Name},
			{cell("B", row), line.Product.HSCode},
			{cell("C", row), line.Quantity},
			{cell("D", row), line.Product.UnitPrice},
			{cell("E", row), amount},
		})
	}

	totalRow := headerRow + len(input.Lines) + 2
	writeCells(f, [][]any{
		{cell("D", totalRow), "Total"},
		{cell("E", totalRow), total},
		{cell("A", totalRow+2), "Signed by:"},
		{cell("B", totalRow+2), input.SignedBy},
	})

	return f.WriteToBuffer()
}

func renderPackingList(input ports.RenderInput) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	setHeader(f, "PACKING LIST", input)

	headerRow := 6
	writeCells(f, [][]any{
		{cell("A", headerRow), "Description"},
		{cell("B", headerRow), "HS Code"},
		{cell("C", headerRow), "Quantity"},
		{cell("D", headerRow), "Unit Weight (kg)"},
		{cell("E", headerRow), "Total Weight (kg)"},
	})

	totalWeight := 0.0
	for i, line := range input.Lines {
		row := headerRow + 1 + i
		weight := line.Quantity * line.Product.UnitWeightKG
		totalWeight += weight
		writeCells(f, [][]any{
			{cell("A", row), line.Product.Name},
			{cell("B", row), line.Product.HSCode},
			{cell("C", row), line.Quantity},
			{cell("D", row), line.Product.UnitWeightKG},
			{cell("E", row), weight},
		})
	}

	totalRow := headerRow + len(input.Lines) + 2
	writeCells(f, [][]any{
		{cell("D", totalRow), "Total Weight"},
		{cell("E", totalRow), totalWeight},
		{cell("A", totalRow+2), "Signed by:"},
		{cell("B", totalRow+2), input.SignedBy},
	})

	return f.WriteToBuffer()
}

func setHeader(f *excelize.File, title string, input ports.RenderInput) {
	writeCells(f, [][]any{
		{"A1", title},
		{"A2", "Document No:"},
		{"B2", input.DocumentNumber},
		{"D2", "Date:"},
		{"E2", input.IssueDate},
		{"A3", "Shipment:"},
		{"B3", input.Shipment.Reference},
		{"A4", "Route:"},
		{"B4", fmt.Sprintf("%s, %s -> %s, %s",
			input.Shipment.Origin.City, input.Shipment.Origin.Country,
			input.Shipment.Destination.City, input.Shipment.Destination.Country)},
		{"D4", "Incoterm:"},
		{"E4", input.Shipment.Incoterm},
	})
}

func writeCells(f *excelize.File, cells [][]any) {
	for _, c := range cells {
		// SetCellValue only fails on malformed references, which are all
		// literals here.
		_ = f.SetCellValue(sheet, c[0].(string), c[1])
	}
}

func cell(column string, row int) string {
	return fmt.Sprintf("%s%d", column, row)
}

func classifySaveError(error) resilience.Verdict {
	return resilience.Verdict{Retry: true, CountFailure: true}
}
