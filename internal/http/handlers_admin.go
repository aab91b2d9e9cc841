package http

import (
	"net/http"

	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/services"
)

type adminView struct {
	page
	Users    []core.UserProfile
	Failures []services.Failure
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := s.accounts.ListUsers(ctx, actorFrom(ctx))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	view := adminView{
		page:  s.newPage(r, "Users", profileFrom(ctx).ID),
		Users: users,
	}
	if s.failures != nil {
		view.Failures = s.failures.Recent()
	}
	s.render(w, r, http.StatusOK, "admin.html", view)
}

// handleAdminUser shows another user's history with the same filters and
// edit controls as the history page.
func (s *Server) handleAdminUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := actorFrom(ctx)
	u, err := s.accounts.GetUser(ctx, actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	list, err := s.expenses.List(ctx, actor, u.ID)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	s.renderHistory(w, r, "Expenses of "+u.Email, u.ID, list)
}
