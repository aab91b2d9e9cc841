package http

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"spendwise/internal/core"
	"spendwise/internal/export"
	"spendwise/internal/log"
	"spendwise/internal/metrics"
)

const (
	formatPDF  = export.FormatPDF
	formatXLSX = export.FormatXLSX
)

type exportFunc func(w io.Writer, p export.Period, list []core.Expense) error

func exporterFor(format string) exportFunc {
	if format == formatXLSX {
		return export.XLSX
	}
	return export.PDF
}

// handleExport downloads the filtered history. The document is rendered
// into memory first so a failure can still be reported as an error page.
func (s *Server) handleExport(format string) http.HandlerFunc {
	render := exporterFor(format)
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		list, err := s.expenses.List(ctx, actorFrom(ctx), targetUser(r))
		if err != nil {
			writeError(w, r, log.OpExport, err)
			return
		}

		f := ParseFilter(r.URL.Query(), s.now())
		period := export.PeriodOf(f)
		filtered := core.ApplyFilter(list, f)

		var buf bytes.Buffer
		err = render(&buf, period, filtered)
		switch {
		case errors.Is(err, export.ErrNothingToExport):
			s.countExport(format, metrics.ResultEmpty)
			NewHTMXResponse().
				Status(http.StatusNoContent).
				TriggerInfoNotification("There are no expenses to export for this period.").
				Write(w)
			return
		case err != nil:
			s.countExport(format, metrics.ResultError)
			writeError(w, r, log.OpExport, err)
			return
		}

		s.countExport(format, metrics.ResultOK)
		log.FromContext(ctx).InfoContext(ctx, "Expenses exported",
			log.FieldOperation, log.OpExport,
			log.FieldFormat, format,
			log.FieldCount, len(filtered))

		w.Header().Set("Content-Type", export.ContentType(format))
		w.Header().Set("Content-Disposition", `attachment; filename="`+period.FileName(format)+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Header().Set("Cache-Control", "no-store")
		_, _ = buf.WriteTo(w)
	}
}

func (s *Server) countExport(format, result string) {
	if s.metrics != nil {
		s.metrics.Exports.WithLabelValues(format, result).Inc()
	}
}
