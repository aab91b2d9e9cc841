package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"spendwise/internal/core"
)

var parserNow = time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		want  core.Filter
	}{
		{
			name:  "defaults to current month",
			query: url.Values{},
			want:  core.Filter{Category: core.AllCategories, Month: 2, Year: 2024},
		},
		{
			name:  "explicit month and year",
			query: url.Values{"month": {"0"}, "year": {"2023"}},
			want:  core.Filter{Category: core.AllCategories, Month: 0, Year: 2023},
		},
		{
			name:  "all months and years",
			query: url.Values{"month": {"all"}, "year": {"all"}},
			want:  core.Filter{Category: core.AllCategories, Month: core.AnyMonth, Year: 0},
		},
		{
			name:  "empty values disable predicates",
			query: url.Values{"month": {""}, "year": {""}},
			want:  core.Filter{Category: core.AllCategories, Month: core.AnyMonth, Year: 0},
		},
		{
			name:  "invalid values keep defaults",
			query: url.Values{"month": {"12"}, "year": {"abc"}},
			want:  core.Filter{Category: core.AllCategories, Month: 2, Year: 2024},
		},
		{
			name:  "search and category are sanitized",
			query: url.Values{"q": {"  coffee\x00 "}, "category": {" Food "}},
			want:  core.Filter{Search: "coffee", Category: "Food", Month: 2, Year: 2024},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseFilter(tt.query, parserNow)
			if got != tt.want {
				t.Errorf("ParseFilter() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFilterQueryRoundTrip(t *testing.T) {
	filters := []core.Filter{
		{Search: "bus", Category: "Transport", Month: 5, Year: 2023},
		{Category: core.AllCategories, Month: core.AnyMonth, Year: 0},
	}
	for _, f := range filters {
		if got := ParseFilter(FilterQuery(f), parserNow); got != f {
			t.Errorf("round trip of %+v = %+v", f, got)
		}
	}
}

func TestParseExpenseInput(t *testing.T) {
	t.Run("valid form", func(t *testing.T) {
		form := url.Values{
			"title":       {" Latte "},
			"description": {"morning"},
			"category":    {"  eating   out "},
			"amount":      {"4,50"},
			"date":        {"2024-03-01"},
		}
		in, err := ParseExpenseInput(form, parserNow)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if in.Title != "Latte" || in.Description != "morning" {
			t.Errorf("text fields = %q / %q", in.Title, in.Description)
		}
		if in.Category != "Eating out" {
			t.Errorf("Category = %q, want %q", in.Category, "Eating out")
		}
		if in.Amount.Cents != 450 {
			t.Errorf("Amount = %d, want 450", in.Amount.Cents)
		}
		if in.Date.String() != "2024-03-01" {
			t.Errorf("Date = %s", in.Date)
		}
	})

	t.Run("blank date means today", func(t *testing.T) {
		in, err := ParseExpenseInput(url.Values{"title": {"Bus"}, "amount": {"2"}}, parserNow)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if in.Date.String() != "2024-03-10" {
			t.Errorf("Date = %s, want today", in.Date)
		}
		if in.Category != "" {
			t.Errorf("Category = %q, want blank for inference", in.Category)
		}
	})

	errorCases := []struct {
		name string
		form url.Values
		want error
	}{
		{"missing amount", url.Values{"title": {"Bus"}}, core.ErrInvalidAmount},
		{"negative amount", url.Values{"title": {"Bus"}, "amount": {"-3"}}, core.ErrInvalidAmount},
		{"zero amount", url.Values{"title": {"Bus"}, "amount": {"0.00"}}, core.ErrInvalidAmount},
		{"bad date", url.Values{"title": {"Bus"}, "amount": {"3"}, "date": {"10/03/2024"}}, core.ErrInvalidDate},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseExpenseInput(tc.form, parserNow)
			if !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := map[string]string{
		"  plain  ":         "plain",
		"tab\tkept":         "tab\tkept",
		"bell\x07removed":   "bellremoved",
		"multi\nline\r\nok": "multi\nline\r\nok",
	}
	for in, want := range tests {
		if got := sanitizeInput(in); got != want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseFormOrFail(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader("title=ok"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if resp := ParseFormOrFail(req); resp != nil {
		t.Fatal("valid form rejected")
	}

	req = httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader("%zz"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := ParseFormOrFail(req)
	if resp == nil {
		t.Fatal("malformed form accepted")
	}
	rec := httptest.NewRecorder()
	resp.Write(rec)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
