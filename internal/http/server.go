package http

import (
	"context"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/cors"

	"kpiboard/internal/cache"
	"kpiboard/internal/log"
	"kpiboard/internal/middleware/ratelimit"
	"kpiboard/internal/middleware/security"
	"kpiboard/internal/services"
	appweb "kpiboard/web"
)

// requestTimeout bounds every store round trip made on behalf of a request.
const requestTimeout = 7 * time.Second

// ReadyCheck reports whether a dependency can serve traffic.
type ReadyCheck func(ctx context.Context) error

// Options wires the server to its services.
type Options struct {
	Addr    string
	Tables  *services.TableService
	Reports *services.ReportService
	// Cache is optional; when set its counters show up on /healthz.
	Cache       *cache.Store
	CORSOrigins []string
	RateLimit   ratelimit.Config
	ReadyChecks map[string]ReadyCheck
	Logger      *log.Logger
}

// Server serves the dashboard pages, the htmx partials and the JSON API.
type Server struct {
	http.Server
	templates   *template.Template
	tables      *services.TableService
	reports     *services.ReportService
	cache       *cache.Store
	limiter     *ratelimit.Limiter
	detector    *security.Detector
	readyChecks map[string]ReadyCheck
	logger      *log.Logger
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Wrap(nil, log.ComponentHTTP)
	}
	rl := opts.RateLimit
	if rl.RequestsPerMinute <= 0 {
		rl = ratelimit.DefaultConfig()
	}

	s := &Server{
		tables:      opts.Tables,
		reports:     opts.Reports,
		cache:       opts.Cache,
		limiter:     ratelimit.NewLimiter(rl),
		detector:    security.NewDetector(),
		readyChecks: opts.ReadyChecks,
		logger:      logger,
		started:     time.Now(),
	}

	// Parse embedded templates at startup.
	t, err := appweb.Templates()
	if err != nil {
		logger.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(opts.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(corsOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(log.Middleware(s.logger))
	r.Use(log.AccessLog(log.NewStructuredLogger(s.logger)))
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.detector.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	if static, err := appweb.Static(); err == nil {
		r.With(security.StaticAssetMiddleware(3600)).
			Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	limit := s.limiter.Middleware(s.detector.ClientIP, s.onRateLimit)

	r.Group(func(r chi.Router) {
		r.Use(limit)
		r.Get("/", s.handleIndex)
		r.Get("/ui/tables/{name}", s.handleTablePartial)
		r.Post("/ui/tables/{name}", s.handleTableSave)
		r.Get("/ui/report", s.handleReportPartial)
		r.Get("/report.xlsx", s.handleReportExport)
	})

	r.Route("/api", func(r chi.Router) {
		if len(corsOrigins) == 0 {
			corsOrigins = []string{"*"}
		}
		r.Use(cors.New(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}).Handler)
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(limit)
		r.Get("/tables/{name}", s.handleAPIGetTable)
		r.Put("/tables/{name}", s.handleAPIPutTable)
		r.Get("/report", s.handleAPIReport)
	})

	return r
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).Warn("Rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
