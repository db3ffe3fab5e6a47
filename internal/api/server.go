package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/flowpbx/phonetree/internal/api/middleware"
	"github.com/flowpbx/phonetree/internal/ivr"
	"github.com/flowpbx/phonetree/internal/session"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Options holds the dependencies of a Server. Engine, Sessions and
// CallTokens are required; the rest may be left zero to disable the
// feature they configure.
type Options struct {
	Engine     *ivr.Engine
	Sessions   session.Store
	CallTokens *middleware.CallTokenSigner
	Logger     *slog.Logger

	// TLSEnabled marks correlation cookies Secure and turns on HSTS.
	TLSEnabled bool

	// WebhookAuth guards /webhook when non-nil.
	WebhookAuth *middleware.DigestAuth

	// WebhookLimiter rate limits /webhook per client IP when non-nil.
	WebhookLimiter *middleware.IPRateLimiter

	// AdminUsername and AdminPasswordHash guard /api/v1 when set.
	AdminUsername     string
	AdminPasswordHash string

	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
}

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router     *chi.Mux
	engine     *ivr.Engine
	sessions   session.Store
	callTokens *middleware.CallTokenSigner
	logger     *slog.Logger
	opts       Options
	now        func() time.Time
}

// NewServer creates the HTTP handler with all routes mounted.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:     chi.NewRouter(),
		engine:     opts.Engine,
		sessions:   opts.Sessions,
		callTokens: opts.CallTokens,
		logger:     logger.With("subsystem", "api"),
		opts:       opts,
		now:        time.Now,
	}

	s.routes(logger)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes(logger *slog.Logger) {
	r := s.router

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.SecurityHeaders(s.opts.TLSEnabled))

	// Voice webhook and call status callback from the telephony provider.
	r.Route("/webhook", func(r chi.Router) {
		if s.opts.WebhookLimiter != nil {
			r.Use(middleware.RateLimit(s.opts.WebhookLimiter))
		}
		if s.opts.WebhookAuth != nil {
			r.Use(s.opts.WebhookAuth.Middleware)
		}
		r.Post("/", s.handleVoice)
		r.Post("/status", s.handleStatus)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Unauthenticated routes.
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			if s.opts.AdminUsername != "" {
				r.Use(middleware.BasicAuth(s.opts.AdminUsername, s.opts.AdminPasswordHash, logger))
			}
			r.Get("/states", s.handleStates)
			r.Route("/sessions/{callID}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
			})
		})
	})

	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.logger.Info("api routes mounted",
		"webhook_auth", s.opts.WebhookAuth != nil,
		"admin_auth", s.opts.AdminUsername != "",
		"metrics", s.opts.Metrics != nil,
	)
}
