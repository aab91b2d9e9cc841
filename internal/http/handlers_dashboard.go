package http

import (
	"net/http"

	"spendwise/internal/ai"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/metrics"
)

const (
	recentCount  = 5
	summaryLimit = 100

	summaryFailure = "Sorry, we could not generate a summary at this time."
)

// page is embedded in every full-page view.
type page struct {
	Title     string
	Profile   core.UserProfile
	Target    string
	UserParam string
}

func (s *Server) newPage(r *http.Request, title, target string) page {
	return page{
		Title:     title,
		Profile:   profileFrom(r.Context()),
		Target:    target,
		UserParam: userParam(r, target),
	}
}

type overviewView struct {
	Stats     core.Stats
	UserParam string
}

type dashboardView struct {
	page
	Overview   overviewView
	Recent     []core.Expense
	Categories []string
	Today      string
}

type summaryView struct {
	Summary string
	Failed  bool
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	target := targetUser(r)
	list, err := s.expenses.List(r.Context(), actorFrom(r.Context()), target)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	now := s.now()
	view := dashboardView{
		page:       s.newPage(r, "Dashboard", target),
		Recent:     core.Recent(list, recentCount),
		Categories: core.UserCategories(list),
		Today:      core.DateOf(now).String(),
	}
	view.Overview = overviewView{Stats: core.Aggregate(list, now), UserParam: view.UserParam}
	s.render(w, r, http.StatusOK, "dashboard.html", view)
}

// handleOverview renders the stats cards and category breakdown partial.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	target := targetUser(r)
	list, err := s.expenses.List(r.Context(), actorFrom(r.Context()), target)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	view := overviewView{Stats: core.Aggregate(list, s.now()), UserParam: userParam(r, target)}
	s.render(w, r, http.StatusOK, "overview", view)
}

type enabler interface {
	Enabled() bool
}

// handleSummary asks the model for a spending summary of the most recent
// expenses. The page never fails because of the model.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := s.expenses.List(ctx, actorFrom(ctx), targetUser(r))
	if err != nil {
		writeError(w, r, log.OpSummarize, err)
		return
	}

	view := summaryView{}
	result := metrics.ResultOK
	switch {
	case s.summarizer == nil || !isEnabled(s.summarizer):
		view.Summary, result = ai.DisabledMessage, metrics.ResultDisabled
	case len(list) == 0:
		view.Summary, result = ai.NoExpensesMessage, metrics.ResultEmpty
	default:
		out, err := s.summarizer.Summarize(ctx, core.Recent(list, summaryLimit))
		if err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Summary unavailable",
				log.NewFields().WithError(err).WithOperation(log.OpSummarize).ToSlice()...)
			view.Summary, view.Failed, result = summaryFailure, true, metrics.ResultError
		} else {
			view.Summary = out.Summary
		}
	}

	if s.metrics != nil {
		s.metrics.Summaries.WithLabelValues(result).Inc()
	}
	s.render(w, r, http.StatusOK, "summary", view)
}

func isEnabled(v any) bool {
	e, ok := v.(enabler)
	return !ok || e.Enabled()
}
