package export

import (
	"bytes"
	"testing"

	"spendwise/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleExpenses() []core.Expense {
	return []core.Expense{
		{Title: "Groceries", Category: "Groceries", Amount: core.Money{Cents: 4520}, Date: core.NewDate(2024, 1, 20)},
		{Title: "Coffee at the café", Category: "Food", Amount: core.Money{Cents: 350}, Date: core.NewDate(2024, 1, 15)},
	}
}

func TestPeriod(t *testing.T) {
	tests := []struct {
		period   Period
		title    string
		fileName string
	}{
		{Period{Month: 0, Year: 2024}, "Expenses for January 2024", "expenses-2024-1.pdf"},
		{Period{Month: 11, Year: 2023}, "Expenses for December 2023", "expenses-2023-12.pdf"},
		{Period{Month: core.AnyMonth, Year: 2024}, "Expenses for All months 2024", "expenses-2024-all.pdf"},
		{Period{Month: core.AnyMonth}, "Expenses for All months all years", "expenses-all-all.pdf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.title, tt.period.Title())
		assert.Equal(t, tt.fileName, tt.period.FileName(FormatPDF))
	}

	assert.Equal(t, Period{Month: 2, Year: 2024}, PeriodOf(core.Filter{Month: 2, Year: 2024, Category: "Food"}))
}

func TestEmptyInputProducesNothing(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, PDF(&buf, Period{}, nil), ErrNothingToExport)
	assert.ErrorIs(t, XLSX(&buf, Period{}, []core.Expense{}), ErrNothingToExport)
	assert.Zero(t, buf.Len())
}

func TestPDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PDF(&buf, Period{Month: 0, Year: 2024}, sampleExpenses()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 500)
}

func TestXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, XLSX(&buf, Period{Month: 0, Year: 2024}, sampleExpenses()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Expenses"}, f.GetSheetList())

	rows, err := f.GetRows("Expenses")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Date", "Title", "Category", "Amount"}, rows[0])
	assert.Equal(t, "1/20/2024", rows[1][0])
	assert.Equal(t, "Coffee at the café", rows[2][1])
	assert.Equal(t, "Total", rows[3][0])

	raw, err := f.GetCellValue("Expenses", "D4", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "48.7", raw)

	typ, err := f.GetCellType("Expenses", "D4")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ)
	assert.NotEqual(t, excelize.CellTypeInlineString, typ)

	width, err := f.GetColWidth("Expenses", "B")
	require.NoError(t, err)
	assert.Equal(t, 30.0, width)

	style, err := f.GetCellStyle("Expenses", "D4")
	require.NoError(t, err)
	assert.NotZero(t, style)
}
