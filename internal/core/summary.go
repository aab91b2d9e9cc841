package core

import (
	"sort"
	"time"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// Stats are the dashboard figures for one user's expenses.
type Stats struct {
	Total        Money
	MonthlyTotal Money // Entries in the current calendar month
	Count        int
	ByCategory   []CategoryAmount // Sorted by amount, descending
}

// Share returns the category's percentage of the stats total, 0-100.
func (s Stats) Share(c CategoryAmount) int {
	if s.Total.Cents <= 0 {
		return 0
	}
	return int((c.Amount.Cents*100 + s.Total.Cents/2) / s.Total.Cents)
}

// Aggregate computes Stats over the full list. now decides which month is
// "this month".
func Aggregate(expenses []Expense, now time.Time) Stats {
	st := Stats{Count: len(expenses), ByCategory: []CategoryAmount{}}
	year, month, _ := now.Date()
	byCat := make(map[string]int64)
	for _, e := range expenses {
		st.Total.Cents += e.Amount.Cents
		if e.Date.Year() == year && e.Date.Month() == month {
			st.MonthlyTotal.Cents += e.Amount.Cents
		}
		byCat[e.Category] += e.Amount.Cents
	}
	for name, cents := range byCat {
		st.ByCategory = append(st.ByCategory, CategoryAmount{Name: name, Amount: Money{Cents: cents}})
	}
	sort.Slice(st.ByCategory, func(i, j int) bool {
		a, b := st.ByCategory[i], st.ByCategory[j]
		if a.Amount.Cents != b.Amount.Cents {
			return a.Amount.Cents > b.Amount.Cents
		}
		return a.Name < b.Name
	})
	return st
}

// AvailableYears lists the distinct years present in expenses plus the
// current year, newest first.
func AvailableYears(expenses []Expense, now time.Time) []int {
	set := map[int]bool{now.Year(): true}
	for _, e := range expenses {
		if !e.Date.IsZero() {
			set[e.Date.Year()] = true
		}
	}
	years := make([]int, 0, len(set))
	for y := range set {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

// Recent returns at most n leading entries of an already ordered list.
func Recent(expenses []Expense, n int) []Expense {
	if n < 0 {
		n = 0
	}
	if len(expenses) < n {
		n = len(expenses)
	}
	return expenses[:n:n]
}

// SortNewestFirst orders by date descending, then creation time descending.
func SortNewestFirst(expenses []Expense) {
	sort.SliceStable(expenses, func(i, j int) bool {
		a, b := expenses[i], expenses[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date.Time)
		}
		return a.Timestamp.After(b.Timestamp)
	})
}
