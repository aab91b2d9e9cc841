package core

import (
	"strings"
	"time"
)

const (
	// AllCategories disables the category predicate.
	AllCategories = "all"
	// AnyMonth disables the month predicate.
	AnyMonth = -1
)

// Filter selects expenses for the history page. Month is zero-based
// (January = 0); Year 0 matches any year.
type Filter struct {
	Search   string
	Category string
	Month    int
	Year     int
}

// NewFilter returns a filter for the given month (zero-based) and year
// with no search or category predicate.
func NewFilter(month, year int) Filter {
	return Filter{Category: AllCategories, Month: month, Year: year}
}

// CurrentMonthFilter returns the default history filter at now.
func CurrentMonthFilter(now time.Time) Filter {
	return NewFilter(int(now.Month())-1, now.Year())
}

// Match reports whether e satisfies every active predicate.
func (f Filter) Match(e Expense) bool {
	if q := strings.TrimSpace(f.Search); q != "" {
		if !strings.Contains(strings.ToLower(e.Title), strings.ToLower(q)) {
			return false
		}
	}
	if f.Category != "" && f.Category != AllCategories && e.Category != f.Category {
		return false
	}
	if f.Month >= 0 && f.Month <= 11 && e.Date.Month() != time.Month(f.Month+1) {
		return false
	}
	if f.Year != 0 && e.Date.Year() != f.Year {
		return false
	}
	return true
}

// ApplyFilter returns the matching expenses in input order. The input
// slice is not modified.
func ApplyFilter(expenses []Expense, f Filter) []Expense {
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Sum adds up the amounts of expenses.
func Sum(expenses []Expense) Money {
	var total Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}
