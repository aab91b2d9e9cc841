package memory

import (
	"context"
	"testing"

	"spendwise/internal/core"
	"spendwise/internal/sheets"
)

func expense(id, title string, cents int64) core.Expense {
	return core.Expense{
		ID:       id,
		UserID:   "u1",
		Title:    title,
		Amount:   core.Money{Cents: cents},
		Category: "Food",
		Date:     core.NewDate(2024, 3, 5),
	}
}

func TestMirrorUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	m := New()

	if err := m.Upsert(ctx, expense("e1", "Lunch", 1250)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := m.Upsert(ctx, expense("e2", "Taxi", 900)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := m.Upsert(ctx, expense("e1", "Lunch with team", 3000)); err != nil {
		t.Fatalf("upsert existing: %v", err)
	}

	rows := m.Rows()
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != sheets.Header[0] {
		t.Errorf("first row is not the header: %v", rows[0])
	}
	if rows[1][3] != "Lunch with team" || rows[1][5] != "30.00" {
		t.Errorf("row not replaced in place: %v", rows[1])
	}
	if rows[1][2] != "2024-03-05" {
		t.Errorf("date cell = %v", rows[1][2])
	}

	if err := m.Delete(ctx, "u1", "e1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.Delete(ctx, "u1", "missing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	rows = m.Rows()
	if len(rows) != 2 || sheets.RowID(rows[1]) != "e2" {
		t.Fatalf("unexpected rows after delete: %v", rows)
	}
}

func TestMirrorRejectsInvalidExpense(t *testing.T) {
	bad := expense("e1", "x", 100)
	if err := New().Upsert(context.Background(), bad); err == nil {
		t.Fatal("expected validation error")
	}
}
