// Package export renders a filtered expense list as a PDF document or an
// XLSX workbook.
package export

import (
	"errors"
	"fmt"
	"time"

	"spendwise/internal/core"
)

// ErrNothingToExport is returned for an empty expense list; no file is
// produced.
var ErrNothingToExport = errors.New("export: no expenses to export")

const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"

	exportDateLayout = "1/2/2006"
)

var headers = []string{"Date", "Title", "Category", "Amount"}

// Period is the month/year window an export covers. Month is 0-based or
// core.AnyMonth; Year 0 means any year.
type Period struct {
	Month int
	Year  int
}

func PeriodOf(f core.Filter) Period {
	return Period{Month: f.Month, Year: f.Year}
}

func (p Period) monthName() string {
	if p.Month < 0 || p.Month > 11 {
		return "All months"
	}
	return time.Month(p.Month + 1).String()
}

func (p Period) yearLabel() string {
	if p.Year == 0 {
		return "all years"
	}
	return fmt.Sprint(p.Year)
}

// Title is the heading printed at the top of a PDF export.
func (p Period) Title() string {
	return fmt.Sprintf("Expenses for %s %s", p.monthName(), p.yearLabel())
}

// FileName returns "expenses-{year}-{month}.{ext}" with a 1-based month,
// using "all" for an unrestricted month or year.
func (p Period) FileName(ext string) string {
	year, month := "all", "all"
	if p.Year != 0 {
		year = fmt.Sprint(p.Year)
	}
	if p.Month >= 0 && p.Month <= 11 {
		month = fmt.Sprint(p.Month + 1)
	}
	return fmt.Sprintf("expenses-%s-%s.%s", year, month, ext)
}

// ContentType returns the MIME type for a format.
func ContentType(format string) string {
	switch format {
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
