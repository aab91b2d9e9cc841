package export

import (
	"fmt"
	"io"

	"spendwise/internal/core"

	"github.com/go-pdf/fpdf"
)

var pdfColumns = []float64{28, 82, 40, 32}

// PDF writes an A4 table of expenses followed by a bold total row.
func PDF(w io.Writer, p Period, expenses []core.Expense) error {
	if len(expenses) == 0 {
		return ErrNothingToExport
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(p.Title(), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, tr(p.Title()), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// Header
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(22, 163, 74)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range headers {
		align := "L"
		if i == len(headers)-1 {
			align = "R"
		}
		pdf.CellFormat(pdfColumns[i], 8, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(0, 0, 0)
	for _, e := range expenses {
		pdf.CellFormat(pdfColumns[0], 7, e.Date.Format(exportDateLayout), "1", 0, "L", false, 0, "")
		pdf.CellFormat(pdfColumns[1], 7, tr(fit(pdf, e.Title, pdfColumns[1]-2)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(pdfColumns[2], 7, tr(fit(pdf, e.Category, pdfColumns[2]-2)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(pdfColumns[3], 7, e.Amount.String(), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(210, 214, 218)
	pdf.CellFormat(pdfColumns[0]+pdfColumns[1]+pdfColumns[2], 8, "Total", "1", 0, "L", true, 0, "")
	pdf.CellFormat(pdfColumns[3], 8, core.Sum(expenses).String(), "1", 0, "R", true, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// fit shortens s with an ellipsis until it fits in width millimetres.
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
