package app

import (
	"context"
	"fmt"
	"io"

	"logistics-backend/internal/core"

	"github.com/xuri/excelize/v2"
)

const transferSheet = "Transfers"

var transferExportHeaders = []string{
	"ID", "Date", "SKU", "Product", "From", "To", "Quantity", "By", "Note",
}

// ExportTransfers writes the filtered transfer history as a single-sheet workbook.
// The last row totals the quantity moved. Staff only.
func (s *appService) ExportTransfers(ctx context.Context, actor Actor, filter core.TransferFilter, w io.Writer) error {
	if err := actor.requireStaff(); err != nil {
		return err
	}
	records, err := s.transfers.ListTransfers(ctx, filter)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", transferSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	header := make([]any, len(transferExportHeaders))
	for i, h := range transferExportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(transferSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(transferExportHeaders))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(transferSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	total := 0
	for i, rec := range records {
		row := []any{
			rec.ID,
			rec.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			rec.ProductSKU,
			rec.ProductName,
			rec.FromWarehouse,
			rec.ToWarehouse,
			rec.Quantity,
			rec.TransferredByEmail,
			rec.Note,
		}
		if err := f.SetSheetRow(transferSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("failed to write transfer %d: %w", rec.ID, err)
		}
		total += rec.Quantity
	}

	summaryRow := len(records) + 2
	summaryStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create summary style: %w", err)
	}
	summary := []any{"Total", nil, nil, nil, nil, nil, total}
	if err := f.SetSheetRow(transferSheet, fmt.Sprintf("A%d", summaryRow), &summary); err != nil {
		return fmt.Errorf("failed to write total: %w", err)
	}
	if err := f.SetCellStyle(transferSheet, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("%s%d", lastCol, summaryRow), summaryStyle); err != nil {
		return fmt.Errorf("failed to style total: %w", err)
	}

	widths := []float64{8, 20, 14, 24, 18, 18, 10, 24, 30}
	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(transferSheet, col, col, width); err != nil {
			return fmt.Errorf("failed to size column %s: %w", col, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
