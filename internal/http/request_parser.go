// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/services"
)

// ParseFilter reads the history filter from query parameters. With no
// month or year parameter the current month is selected; "all" (or an
// empty year) disables that predicate. Invalid numbers fall back to the
// current month or year.
func ParseFilter(query url.Values, now time.Time) core.Filter {
	f := core.CurrentMonthFilter(now)
	f.Search = sanitizeInput(query.Get("q"))

	if c := sanitizeInput(query.Get("category")); c != "" {
		f.Category = c
	}

	if query.Has("month") {
		switch v := strings.TrimSpace(query.Get("month")); v {
		case "", core.AllCategories:
			f.Month = core.AnyMonth
		default:
			if m, err := strconv.Atoi(v); err == nil && m >= 0 && m <= 11 {
				f.Month = m
			}
		}
	}

	if query.Has("year") {
		switch v := strings.TrimSpace(query.Get("year")); v {
		case "", "all", "0":
			f.Year = 0
		default:
			if y, err := strconv.Atoi(v); err == nil && y > 0 {
				f.Year = y
			}
		}
	}
	return f
}

// FilterQuery encodes f back into query parameters understood by ParseFilter.
func FilterQuery(f core.Filter) url.Values {
	q := url.Values{}
	if f.Search != "" {
		q.Set("q", f.Search)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Month == core.AnyMonth {
		q.Set("month", "all")
	} else {
		q.Set("month", strconv.Itoa(f.Month))
	}
	if f.Year == 0 {
		q.Set("year", "all")
	} else {
		q.Set("year", strconv.Itoa(f.Year))
	}
	return q
}

// ParseExpenseInput reads the expense form. A blank date means today.
// Amount and date errors are the core validation errors so they map to
// a 422 like any other invalid input.
func ParseExpenseInput(form url.Values, now time.Time) (services.ExpenseInput, error) {
	in := services.ExpenseInput{
		Title:       sanitizeInput(form.Get("title")),
		Description: sanitizeInput(form.Get("description")),
		Category:    core.NormalizeCategory(sanitizeInput(form.Get("category"))),
		Date:        core.DateOf(now),
	}

	cents, err := core.ParseDecimalToCents(strings.TrimSpace(form.Get("amount")))
	if err != nil {
		return in, core.ErrInvalidAmount
	}
	in.Amount = core.Money{Cents: cents}

	if v := strings.TrimSpace(form.Get("date")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return in, err
		}
		in.Date = d
	}
	return in, nil
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}
