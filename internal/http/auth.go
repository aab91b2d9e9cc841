package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/services"
)

const sessionCookie = "spendwise_session"

type contextKey int

const profileKey contextKey = iota

func withProfile(ctx context.Context, p core.UserProfile) context.Context {
	return context.WithValue(ctx, profileKey, p)
}

// profileFrom returns the signed-in user stored by requireAuth.
func profileFrom(ctx context.Context) core.UserProfile {
	p, _ := ctx.Value(profileKey).(core.UserProfile)
	return p
}

func actorFrom(ctx context.Context) services.Actor {
	return services.ActorFor(profileFrom(ctx))
}

// targetUser is the collection a request acts on: the "user" parameter
// when present, the signed-in user otherwise. The service decides whether
// the actor may touch it.
func targetUser(r *http.Request) string {
	if id := strings.TrimSpace(r.FormValue("user")); id != "" {
		return id
	}
	return profileFrom(r.Context()).ID
}

// userParam is the value templates append as ?user= on links; empty when
// users look at their own data.
func userParam(r *http.Request, target string) string {
	if target == profileFrom(r.Context()).ID {
		return ""
	}
	return target
}

// requireAuth resolves the session cookie. HTMX requests without a valid
// session get a 401 with HX-Redirect so the whole page navigates to the
// login form; plain requests are redirected.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil || c.Value == "" {
			s.unauthenticated(w, r)
			return
		}

		profile, sess, err := s.accounts.Authenticate(r.Context(), c.Value)
		if errors.Is(err, core.ErrSessionExpired) {
			s.clearSessionCookie(w)
			s.unauthenticated(w, r)
			return
		}
		if err != nil {
			writeError(w, r, log.OpRead, err)
			return
		}

		s.setSessionCookie(w, sess)
		ctx := withProfile(r.Context(), profile)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, profile.ID))
		next(w, r.WithContext(ctx))
	}
}

// requireAdmin is requireAuth plus a role check.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		if !profileFrom(r.Context()).IsAdmin() {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Admin page denied",
				log.FieldPath, r.URL.Path, log.FieldErrorType, log.ErrorTypeAuth)
			ForbiddenError("Administrators only").Write(w)
			return
		}
		next(w, r)
	})
}

func (s *Server) unauthenticated(w http.ResponseWriter, r *http.Request) {
	if isHTMX(r) {
		NewHTMXResponse().Status(http.StatusUnauthorized).Redirect("/login").Write(w)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess core.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

type authView struct {
	Title string
	Email string
	Next  string
	Error string
}

// safeNext only allows local paths as post-login destinations.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login.html", authView{Title: "Sign in", Next: safeNext(r.URL.Query().Get("next"))})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	email := sanitizeInput(r.PostForm.Get("email"))
	next := safeNext(r.PostForm.Get("next"))

	sess, _, err := s.accounts.SignIn(r.Context(), email, r.PostForm.Get("password"))
	if errors.Is(err, core.ErrInvalidCredentials) {
		s.render(w, r, http.StatusUnauthorized, "login.html",
			authView{Title: "Sign in", Email: email, Next: next, Error: userMessage(err)})
		return
	}
	if err != nil {
		log.FromContext(r.Context()).LogError(r.Context(), "Sign-in failed", err, log.OpSignIn, nil)
		s.render(w, r, http.StatusInternalServerError, "login.html",
			authView{Title: "Sign in", Email: email, Next: next, Error: genericFailure})
		return
	}

	s.setSessionCookie(w, sess)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "signup.html", authView{Title: "Create account"})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	email := sanitizeInput(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")

	view := authView{Title: "Create account", Email: email}
	if password != r.PostForm.Get("confirm") {
		view.Error = "Passwords do not match"
		s.render(w, r, http.StatusUnprocessableEntity, "signup.html", view)
		return
	}

	if _, err := s.accounts.SignUp(r.Context(), email, password); err != nil {
		status := http.StatusUnprocessableEntity
		switch {
		case errors.Is(err, core.ErrEmailTaken):
			status = http.StatusConflict
			view.Error = userMessage(err)
		case core.IsValidationError(err):
			view.Error = userMessage(err)
		default:
			log.FromContext(r.Context()).LogError(r.Context(), "Sign-up failed", err, log.OpSignUp, nil)
			status = http.StatusInternalServerError
			view.Error = genericFailure
		}
		s.render(w, r, status, "signup.html", view)
		return
	}

	sess, _, err := s.accounts.SignIn(r.Context(), email, password)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	s.setSessionCookie(w, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if err := s.accounts.SignOut(r.Context(), c.Value); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Sign-out failed", log.FieldError, err.Error())
		}
	}
	s.clearSessionCookie(w)
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/login").Write(w)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
