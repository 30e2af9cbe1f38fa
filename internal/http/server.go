package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"cambi/internal/cache"
	"cambi/internal/core"
	"cambi/internal/ledger"
	applog "cambi/internal/log"
	"cambi/internal/metrics"
	"cambi/internal/middleware/ratelimit"
	"cambi/internal/middleware/security"
	"cambi/internal/middleware/trace"
	"cambi/internal/nav"
	appweb "cambi/web"
)

const (
	summaryCacheSize     = 100
	cacheCleanupInterval = 10 * time.Minute
	staticMaxAge         = 3600
)

// Options configures a Server. Zero values fall back to defaults.
type Options struct {
	Addr               string
	FilterYears        []int
	PrimaryCurrency    string
	SecondaryCurrency  string
	CacheTTL           time.Duration
	RateLimitPerMinute int
	TrustedProxies     []string
	Logger             *applog.Logger
	Metrics            *metrics.Registry
}

type Server struct {
	http.Server
	templates *template.Template
	ledger    *ledger.Ledger
	logger    *applog.Logger
	metrics   *metrics.Registry
	clientIP  clientIPExtractor

	years             []core.YearChoices
	primaryCurrency   string
	secondaryCurrency string

	// generation is bumped on every mutation. Cached summaries are keyed by
	// it so one computed before a mutation is never served after it.
	generation   atomic.Uint64
	summaryCache *cache.LRUCache[core.Summary]
	caches       *cache.Manager
	limiter      *ratelimit.Limiter
	startedAt    time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(l *ledger.Ledger, opts Options) (*Server, error) {
	if len(opts.FilterYears) == 0 {
		opts.FilterYears = []int{2026, 2025}
	}
	if opts.PrimaryCurrency == "" {
		opts.PrimaryCurrency = "PLN"
	}
	if opts.SecondaryCurrency == "" {
		opts.SecondaryCurrency = "INR"
	}
	if opts.Logger == nil {
		opts.Logger = applog.FromContext(context.Background())
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRegistry()
	}

	trusted, err := ParseTrustedProxies(opts.TrustedProxies)
	if err != nil {
		return nil, err
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		templates:         t,
		ledger:            l,
		logger:            opts.Logger.WithComponent(applog.ComponentHTTP),
		metrics:           opts.Metrics,
		clientIP:          clientIPExtractor{trusted: trusted},
		years:             core.MonthChoices(opts.FilterYears),
		primaryCurrency:   opts.PrimaryCurrency,
		secondaryCurrency: opts.SecondaryCurrency,
		summaryCache:      cache.NewLRUCache[core.Summary](summaryCacheSize, opts.CacheTTL),
		caches:            cache.NewManager(),
		limiter:           ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		startedAt:         time.Now(),
	}
	s.summaryCache.OnLookup(s.metrics.CacheObserver("summary"))
	s.caches.Register(s.summaryCache)
	s.caches.StartCleanup(cacheCleanupInterval)
	s.metrics.LedgerSize.Set(float64(l.Len()))

	mux := http.NewServeMux()

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	for _, path := range nav.Paths() {
		switch path {
		case "/summary":
			mux.HandleFunc("GET /summary", s.handleSummaryPage)
		case "/":
			mux.HandleFunc("GET /{$}", s.handlePlaceholder("Dashboard"))
		default:
			mux.HandleFunc("GET "+path, s.handlePlaceholder(nav.Label(path)))
		}
	}

	mux.Handle("GET /ui/summary", security.NoStore(http.HandlerFunc(s.handleSummaryPartial)))
	mux.HandleFunc("/entries", s.handleCreateEntry)
	mux.HandleFunc("/entries/delete", s.handleDeleteEntry)
	mux.HandleFunc("GET /entries.csv", s.handleExportCSV)

	tracer := trace.NewMiddleware(s.clientIP.extract, opts.Logger,
		trace.WithObserver(s.metrics, func(r *http.Request) string {
			if _, pattern := mux.Handler(r); pattern != "" {
				return pattern
			}
			return "unmatched"
		}))
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.clientIP.extract, s.rateLimited, http.MethodPost, http.MethodDelete)
	withLogger := applog.Middleware(opts.Logger, trace.GetRequestID)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           tracer.Middleware(headers.Middleware(limit(withLogger(mux)))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Shutdown stops the background cleanup goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited.Inc()
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.clientIP.extract(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	TooManyRequestsError("Too many requests. Please try again later.").Write(w)
}
