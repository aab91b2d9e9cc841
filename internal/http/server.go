// Package http serves the HTMX pages, partials, exports and the live
// WebSocket feed.
package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"spendwise/internal/ai"
	"spendwise/internal/live"
	"spendwise/internal/log"
	"spendwise/internal/metrics"
	"spendwise/internal/middleware/ratelimit"
	"spendwise/internal/middleware/security"
	"spendwise/internal/middleware/trace"
	"spendwise/internal/services"
	appweb "spendwise/web"
)

// Config holds listener settings.
type Config struct {
	Addr           string
	SecureCookies  bool
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the handlers call. Expenses, Accounts and
// Hub are required.
type Deps struct {
	Expenses   *services.ExpenseService
	Accounts   *services.AccountService
	Summarizer ai.Summarizer
	Hub        *live.Hub
	Failures   *services.FailureLog
	Store      Pinger
	Metrics    *metrics.Metrics
	Limiter    *ratelimit.Limiter
	Detector   *security.Detector
	Logger     *log.Logger
	Now        func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	mux       *http.ServeMux

	expenses   *services.ExpenseService
	accounts   *services.AccountService
	summarizer ai.Summarizer
	hub        *live.Hub
	failures   *services.FailureLog
	store      Pinger
	metrics    *metrics.Metrics
	limiter    *ratelimit.Limiter
	detector   *security.Detector
	logger     *log.Logger
	now        func() time.Time

	secureCookies bool
	shutdownOnce  sync.Once
}

// NewServer parses the embedded templates and wires routes and middleware.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Expenses == nil || deps.Accounts == nil || deps.Hub == nil {
		return nil, errors.New("http: expenses, accounts and hub are required")
	}
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Detector == nil {
		deps.Detector = security.NewDetector(deps.Logger)
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = 1 << 16
	}

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		},
		templates:     t,
		mux:           mux,
		expenses:      deps.Expenses,
		accounts:      deps.Accounts,
		summarizer:    deps.Summarizer,
		hub:           deps.Hub,
		failures:      deps.Failures,
		store:         deps.Store,
		metrics:       deps.Metrics,
		limiter:       deps.Limiter,
		detector:      deps.Detector,
		logger:        deps.Logger.WithComponent(log.ComponentHTTP),
		now:           deps.Now,
		secureCookies: cfg.SecureCookies,
	}

	if err := s.routes(); err != nil {
		return nil, err
	}
	s.Handler = s.middleware(mux)
	return s, nil
}

func (s *Server) routes() error {
	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("mount static assets: %w", err)
	}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	s.mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))

	s.mux.HandleFunc("GET /healthz", handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.mux.HandleFunc("GET /login", s.handleLoginPage)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("GET /signup", s.handleSignupPage)
	s.mux.HandleFunc("POST /signup", s.handleSignup)
	s.mux.HandleFunc("POST /logout", s.handleLogout)

	s.mux.HandleFunc("GET /{$}", s.requireAuth(s.handleDashboard))
	s.mux.HandleFunc("GET /ui/overview", s.requireAuth(s.handleOverview))
	s.mux.HandleFunc("POST /summary", s.requireAuth(s.handleSummary))

	s.mux.HandleFunc("GET /expenses", s.requireAuth(s.handleHistory))
	s.mux.HandleFunc("POST /expenses", s.requireAuth(s.handleCreateExpense))
	s.mux.HandleFunc("GET /expenses/{id}", s.requireAuth(s.handleExpenseRow))
	s.mux.HandleFunc("GET /expenses/{id}/edit", s.requireAuth(s.handleEditExpense))
	s.mux.HandleFunc("PUT /expenses/{id}", s.requireAuth(s.handleUpdateExpense))
	s.mux.HandleFunc("DELETE /expenses/{id}", s.requireAuth(s.handleDeleteExpense))
	s.mux.HandleFunc("GET /expenses/export.pdf", s.requireAuth(s.handleExport(formatPDF)))
	s.mux.HandleFunc("GET /expenses/export.xlsx", s.requireAuth(s.handleExport(formatXLSX)))

	s.mux.HandleFunc("GET /live", s.requireAuth(s.handleLive))

	s.mux.HandleFunc("GET /admin", s.requireAdmin(s.handleAdmin))
	s.mux.HandleFunc("GET /admin/users/{id}", s.requireAdmin(s.handleAdminUser))
	return nil
}

// middleware wraps the mux: trace, security headers and probe detection,
// request-scoped logger, then rate limiting of mutating requests.
func (s *Server) middleware(next http.Handler) http.Handler {
	h := next
	if s.limiter != nil {
		h = s.limiter.Middleware(s.detector.ExtractClientIP, s.rateLimited)(h)
	}
	h = log.Middleware(s.logger, trace.RequestID)(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	return trace.NewMiddleware(s.logger, s.metrics, s.detector.ExtractClientIP, s.routeOf).Middleware(h)
}

// routeOf labels metrics with the matched pattern instead of the raw path.
func (s *Server) routeOf(r *http.Request) string {
	_, pattern := s.mux.Handler(r)
	return pattern
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please try again later.").
		TriggerErrorNotification("Too many requests. Please slow down.").
		Write(w)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "HTTP server shutting down", log.FieldOperation, log.OpShutdown)
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("storage unavailable"))
			return
		}
	}
	_, _ = w.Write([]byte("ready"))
}

// render executes a template into a buffer so a failing template never
// produces a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).LogError(r.Context(), "Template execution failed", err, log.OpRender,
			log.LogFields{"template": name})
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderFragment executes a partial into a string for the response builder.
func (s *Server) renderFragment(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
