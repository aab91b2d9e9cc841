package export

import (
	"fmt"
	"io"

	"spendwise/internal/core"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName    = "Expenses"
	currencyFmt  = "$#,##0.00"
	defaultSheet = "Sheet1"
)

var columnWidths = map[string]float64{"A": 12, "B": 30, "C": 15, "D": 10}

// XLSX writes a single-sheet workbook. Amounts, including the total, are
// numeric cells formatted as currency.
func XLSX(w io.Writer, p Period, expenses []core.Expense) error {
	if len(expenses) == 0 {
		return ErrNothingToExport
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(defaultSheet, sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	f.SetDocProps(&excelize.DocProperties{Title: p.Title(), Creator: "spendwise"})

	numFmt := currencyFmt
	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	totalStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, CustomNumFmt: &numFmt})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	row := 1
	for i, h := range headers {
		if err := setCell(f, i+1, row, h); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheetName, "A1", "D1", boldStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for _, e := range expenses {
		row++
		values := []any{e.Date.Format(exportDateLayout), e.Title, e.Category, e.Amount.Dollars()}
		for i, v := range values {
			if err := setCell(f, i+1, row, v); err != nil {
				return err
			}
		}
	}
	if err := f.SetCellStyle(sheetName, "D2", fmt.Sprintf("D%d", row), amountStyle); err != nil {
		return fmt.Errorf("style amounts: %w", err)
	}

	row++
	if err := setCell(f, 1, row, "Total"); err != nil {
		return err
	}
	if err := setCell(f, 4, row, core.Sum(expenses).Dollars()); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), boldStyle); err != nil {
		return fmt.Errorf("style total: %w", err)
	}
	if err := f.SetCellStyle(sheetName, fmt.Sprintf("D%d", row), fmt.Sprintf("D%d", row), totalStyle); err != nil {
		return fmt.Errorf("style total: %w", err)
	}

	for col, width := range columnWidths {
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheetName, cell, v); err != nil {
		return fmt.Errorf("set %s: %w", cell, err)
	}
	return nil
}
