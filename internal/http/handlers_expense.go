package http

import (
	"net/http"

	"spendwise/internal/core"
	"spendwise/internal/log"
)

type historyView struct {
	page
	Filter     core.Filter
	Expenses   []core.Expense
	Total      core.Money
	Categories []string
	Years      []int
	Months     []monthOption
	ExportPDF  string
	ExportXLSX string
}

type editView struct {
	Expense    core.Expense
	UserParam  string
	Categories []string
}

// handleHistory renders the filterable history page. HTMX requests for the
// list only get the table partial.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	target := targetUser(r)
	list, err := s.expenses.List(r.Context(), actorFrom(r.Context()), target)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	s.renderHistory(w, r, "History", target, list)
}

func (s *Server) renderHistory(w http.ResponseWriter, r *http.Request, title, target string, list []core.Expense) {
	now := s.now()
	f := ParseFilter(r.URL.Query(), now)
	filtered := core.ApplyFilter(list, f)

	view := historyView{
		page:       s.newPage(r, title, target),
		Filter:     f,
		Expenses:   filtered,
		Total:      core.Sum(filtered),
		Categories: core.UserCategories(list),
		Years:      core.AvailableYears(list, now),
		Months:     monthOptions(),
	}
	q := FilterQuery(f)
	if view.UserParam != "" {
		q.Set("user", view.UserParam)
	}
	view.ExportPDF = "/expenses/export.pdf?" + q.Encode()
	view.ExportXLSX = "/expenses/export.xlsx?" + q.Encode()

	if isHTMX(r) && r.Header.Get("HX-Target") == "history-table" {
		s.render(w, r, http.StatusOK, "history-table", view)
		return
	}
	s.render(w, r, http.StatusOK, "expenses.html", view)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	in, err := ParseExpenseInput(r.PostForm, s.now())
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	e, err := s.expenses.Create(ctx, actorFrom(ctx), targetUser(r), in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	html, err := s.renderFragment("expense-row", rowView{Expense: e, UserParam: userParam(r, e.UserID)})
	if err != nil {
		writeError(w, r, log.OpRender, err)
		return
	}
	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerExpenseCreated(e.ID).
		TriggerFormReset().
		TriggerOverviewRefresh().
		TriggerSuccessNotification("Expense added: " + e.Title + " (" + e.Category + ")").
		BodyHTML(html).
		Write(w)
}

// handleExpenseRow renders a single row, used to cancel an edit.
func (s *Server) handleExpenseRow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	target := targetUser(r)
	e, err := s.expenses.Get(ctx, actorFrom(ctx), target, r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	s.render(w, r, http.StatusOK, "expense-row", rowView{Expense: e, UserParam: userParam(r, target)})
}

func (s *Server) handleEditExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := actorFrom(ctx)
	target := targetUser(r)

	e, err := s.expenses.Get(ctx, actor, target, r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	list, err := s.expenses.List(ctx, actor, target)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	s.render(w, r, http.StatusOK, "edit-row", editView{
		Expense:    e,
		UserParam:  userParam(r, target),
		Categories: core.UserCategories(list),
	})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	in, err := ParseExpenseInput(r.PostForm, s.now())
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	target := targetUser(r)
	e, err := s.expenses.Update(ctx, actorFrom(ctx), target, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	html, err := s.renderFragment("expense-row", rowView{Expense: e, UserParam: userParam(r, target)})
	if err != nil {
		writeError(w, r, log.OpRender, err)
		return
	}
	NewHTMXResponse().
		TriggerExpenseUpdated(e.ID).
		TriggerOverviewRefresh().
		TriggerSuccessNotification("Expense updated").
		BodyHTML(html).
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if err := s.expenses.Delete(ctx, actorFrom(ctx), targetUser(r), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewHTMXResponse().
		TriggerExpenseDeleted(id).
		TriggerOverviewRefresh().
		TriggerSuccessNotification("Expense deleted").
		Write(w)
}
