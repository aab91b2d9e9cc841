package core

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// FallbackCategory is stored when a category cannot be inferred.
const FallbackCategory = "Other"

// DefaultCategories are offered as suggestions. Categories are open strings.
var DefaultCategories = []string{
	"Food",
	"Transport",
	"Shopping",
	"Bills",
	"Entertainment",
	"Health",
	"Groceries",
	"Other",
}

// NormalizeCategory trims, collapses inner whitespace and upper-cases the
// first letter, so "  eating   out" becomes "Eating out".
func NormalizeCategory(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// UserCategories returns the default categories followed by every other
// category seen in the user's history, in first-seen order.
func UserCategories(expenses []Expense) []string {
	seen := make(map[string]bool, len(DefaultCategories))
	out := make([]string, 0, len(DefaultCategories))
	for _, c := range DefaultCategories {
		seen[strings.ToLower(c)] = true
		out = append(out, c)
	}
	for _, e := range expenses {
		key := strings.ToLower(strings.TrimSpace(e.Category))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e.Category)
	}
	return out
}
