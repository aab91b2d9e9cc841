// Package sheets holds the row layout shared by the spreadsheet mirrors.
package sheets

import (
	"fmt"
	"strings"

	"spendwise/internal/core"
)

// Header is the first row of a mirror sheet. Column A is the row key.
var Header = []any{"ID", "User", "Date", "Title", "Category", "Amount", "Description"}

// Columns is the A1 column span covered by Header.
const Columns = "A:G"

// Row encodes e in Header order. The amount is a plain decimal so that
// USER_ENTERED input stores it as a number.
func Row(e core.Expense) []any {
	return []any{e.ID, e.UserID, e.Date.String(), e.Title, e.Category, e.Amount.Decimal(), e.Description}
}

// RowID returns the key cell of a row read back from a sheet.
func RowID(row []any) string {
	if len(row) == 0 {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[0]))
}

// FindRow returns the index in rows whose key equals id, or -1.
func FindRow(rows [][]any, id string) int {
	if id == "" {
		return -1
	}
	for i, row := range rows {
		if RowID(row) == id {
			return i
		}
	}
	return -1
}
