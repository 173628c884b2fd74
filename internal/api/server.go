package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/JakeFAU/profile-preview/internal/clock"
	"github.com/JakeFAU/profile-preview/internal/id/uuid"
	"github.com/JakeFAU/profile-preview/internal/metrics"
	"github.com/JakeFAU/profile-preview/internal/preview"
	"github.com/JakeFAU/profile-preview/internal/publisher"
)

// ServedTopic labels crawler-hit events.
const ServedTopic = "preview.served"

const defaultPublishTimeout = 5 * time.Second

// CachePolicy holds the Cache-Control value sent to each audience.
type CachePolicy struct {
	Crawler string
	Human   string
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints request and event IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Options configures a Server.
type Options struct {
	Service *preview.Service
	Cache   CachePolicy
	// Publisher receives crawler-hit events; nil disables them.
	Publisher      publisher.Publisher
	PublishTimeout time.Duration
	// Ready reports whether downstream dependencies are reachable; nil means
	// always ready.
	Ready          func(context.Context) error
	AllowedOrigins []string
	RequestTimeout time.Duration
	// Clock and IDs default to the system clock and UUIDv7 IDs.
	Clock          Clock
	IDs            IDGenerator
	Logger         *zap.Logger
}

// Server wires HTTP handlers to the preview service.
type Server struct {
	router         chi.Router
	svc            *preview.Service
	cache          CachePolicy
	pub            publisher.Publisher
	publishTimeout time.Duration
	ready          func(context.Context) error
	clock          Clock
	ids            IDGenerator
	logger         *zap.Logger
	inflight       sync.WaitGroup
}

// NewServer constructs a Server with middleware and routes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:            opts.Service,
		cache:          opts.Cache,
		pub:            opts.Publisher,
		publishTimeout: opts.PublishTimeout,
		ready:          opts.Ready,
		clock:          opts.Clock,
		ids:            opts.IDs,
		logger:         logger,
	}
	if s.clock == nil {
		s.clock = clock.System{}
	}
	if s.ids == nil {
		s.ids = uuid.New()
	}
	if s.publishTimeout <= 0 {
		s.publishTimeout = defaultPublishTimeout
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware(s.ids))
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware(s.audienceOf))
	r.Use(middleware.GetHead)
	r.Use(timeoutMiddleware(timeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/api/profile", s.missingIdentifier)
	r.Get("/api/profile/", s.missingIdentifier)
	r.Get("/api/profile/{identifier}", s.profilePreview)
	r.Get("/og/profile/", s.missingIdentifier)
	r.Get("/og/profile/{identifier}", s.profilePreview)
	r.Route("/api/profile/{identifier}/meta", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "If-None-Match"},
			ExposedHeaders: []string{"ETag", "X-Request-ID"},
			MaxAge:         300,
		}))
		r.Get("/", s.profileMeta)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Wait blocks until in-flight event publishes finish or ctx ends.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// audienceOf labels HTTP metrics with the audience the preview pipeline
// would pick for the request.
func (s *Server) audienceOf(r *http.Request) string {
	if s.svc == nil {
		return ""
	}
	return string(s.svc.Audience(r.UserAgent()))
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
