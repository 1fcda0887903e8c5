// Package export renders the period history as an XLSX workbook.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"ledger/internal/core"
	"ledger/internal/sheets"
)

const (
	periodsSheet  = "periods"
	expensesSheet = "expenses"
)

// BuildPeriodsXLSX writes one row per period, in the spreadsheet export
// layout, and one row per expense on a second sheet.
func BuildPeriodsXLSX(periods []core.PeriodSummary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", periodsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(expensesSheet); err != nil {
		return nil, err
	}

	if err := setRow(f, periodsSheet, 1, toCells(sheets.Header())); err != nil {
		return nil, err
	}
	for i, p := range periods {
		if err := setRow(f, periodsSheet, i+2, numeric(sheets.Row(p))); err != nil {
			return nil, err
		}
	}

	header := []any{"Period", "Expense", "Created", "Category", "Description", "Amount"}
	if err := setRow(f, expensesSheet, 1, header); err != nil {
		return nil, err
	}
	row := 2
	for _, p := range periods {
		for _, e := range p.Expenses {
			cells := []any{
				e.PeriodID,
				e.ID,
				e.CreatedAt.UTC().Format(time.DateTime),
				e.Category.String(),
				e.Description,
				e.Amount.InexactFloat64(),
			}
			if err := setRow(f, expensesSheet, row, cells); err != nil {
				return nil, err
			}
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

// numeric turns the decimal strings of a sheet row into numbers so the
// workbook can sum them.
func numeric(row []any) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
		if s, ok := v.(string); ok {
			if d, err := core.ParseSettlement(s); err == nil {
				out[i] = d.InexactFloat64()
			}
		}
	}
	return out
}

func toCells(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
