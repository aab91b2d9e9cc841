// Package memory is an in-process stand-in for the Google Sheets mirror.
// It keeps rows in the same layout the real sheet uses.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"spendwise/internal/core"
	"spendwise/internal/sheets"
)

type Mirror struct {
	mu   sync.Mutex
	rows [][]any
}

func New() *Mirror {
	return &Mirror{}
}

// Upsert replaces the row keyed by e.ID or appends a new one.
func (m *Mirror) Upsert(_ context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rows) == 0 {
		m.rows = append(m.rows, slices.Clone(sheets.Header))
	}
	row := sheets.Row(e)
	if i := sheets.FindRow(m.rows[1:], e.ID); i >= 0 {
		m.rows[i+1] = row
		return nil
	}
	m.rows = append(m.rows, row)
	return nil
}

// Delete removes the row keyed by expenseID. Missing rows are not an error.
func (m *Mirror) Delete(_ context.Context, _, expenseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rows) < 2 {
		return nil
	}
	if i := sheets.FindRow(m.rows[1:], expenseID); i >= 0 {
		m.rows = slices.Delete(m.rows, i+1, i+2)
	}
	return nil
}

// Rows returns a copy of the sheet, header included.
func (m *Mirror) Rows() [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]any, len(m.rows))
	for i, r := range m.rows {
		out[i] = slices.Clone(r)
	}
	return out
}
