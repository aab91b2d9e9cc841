package http

import (
	"errors"
	"html/template"
	"net/http"
	"time"
	"unicode"
	"unicode/utf8"

	"spendwise/internal/core"
	"spendwise/internal/log"
)

const genericFailure = "Something went wrong. Please try again."

// userMessage turns an error into text that can be shown in a form.
func userMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return "Amount must be a positive number"
	case errors.Is(err, core.ErrInvalidDate), errors.Is(err, core.ErrInvalidDay), errors.Is(err, core.ErrInvalidMonth):
		return "Please enter a valid date"
	case errors.Is(err, core.ErrEmptyCategory):
		return "Please choose a category"
	case errors.Is(err, core.ErrNotFound):
		return "Expense not found"
	case errors.Is(err, core.ErrForbidden):
		return "You are not allowed to do that"
	}
	return capitalize(err.Error())
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// errorResponse maps a service error to the HTMX response the browser sees.
// Storage and other unexpected failures are logged here.
func errorResponse(r *http.Request, op string, err error) *HTMXResponseBuilder {
	switch {
	case core.IsValidationError(err):
		return UnprocessableEntityError(userMessage(err))
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError(userMessage(err))
	case errors.Is(err, core.ErrForbidden):
		return ForbiddenError(userMessage(err))
	}

	log.FromContext(r.Context()).LogError(r.Context(), "Request failed", err, op, nil)
	return InternalServerError(genericFailure).TriggerErrorNotification(genericFailure)
}

// writeError writes errorResponse(r, op, err).
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	errorResponse(r, op, err).Write(w)
}

type monthOption struct {
	Value int
	Name  string
}

// monthOptions lists January..December with zero-based values.
func monthOptions() []monthOption {
	out := make([]monthOption, 12)
	for i := range out {
		out[i] = monthOption{Value: i, Name: time.Month(i + 1).String()}
	}
	return out
}

func monthName(m int) string {
	if m < 0 || m > 11 {
		return "All months"
	}
	return time.Month(m + 1).String()
}

// rowView is the data for one expense row partial.
type rowView struct {
	Expense   core.Expense
	UserParam string
}

// templateFuncs are available to every template.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"monthName": monthName,
		"row": func(e core.Expense, userParam string) rowView {
			return rowView{Expense: e, UserParam: userParam}
		},
		"dateInput": func(d core.Date) string { return d.String() },
		"displayDate": func(d core.Date) string {
			if d.IsZero() {
				return ""
			}
			return d.Format("Jan 2, 2006")
		},
	}
}
