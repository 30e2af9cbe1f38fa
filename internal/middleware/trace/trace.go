package trace

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	applog "cambi/internal/log"
)

type contextKey struct{}

// HeaderRequestID is echoed on every response and honoured on requests.
const HeaderRequestID = "X-Request-ID"

// Observer receives one call per completed request.
type Observer interface {
	ObserveHTTP(route, method string, status int, d time.Duration)
}

// Middleware assigns request IDs and logs request start and completion.
type Middleware struct {
	extractIP  func(*http.Request) string
	routeLabel func(*http.Request) string
	observer   Observer
	logger     *applog.StructuredLogger
}

type Option func(*Middleware)

// WithObserver reports every completed request to o, labelled by route.
func WithObserver(o Observer, routeLabel func(*http.Request) string) Option {
	return func(m *Middleware) {
		m.observer = o
		m.routeLabel = routeLabel
	}
}

func NewMiddleware(extractIP func(*http.Request) string, logger *applog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		extractIP: extractIP,
		logger:    applog.NewStructuredLogger(logger),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := r.Header.Get(HeaderRequestID)
		if !validRequestID(requestID) {
			requestID = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, requestID)

		ctx := context.WithValue(r.Context(), contextKey{}, requestID)
		r = r.WithContext(ctx)

		m.logger.LogHTTPStart(ctx, r, requestID, clientIP)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		m.logger.LogHTTPEnd(ctx, r, requestID, rw.statusCode, duration.Milliseconds(), clientIP)

		if m.observer != nil {
			route := r.URL.Path
			if m.routeLabel != nil {
				route = m.routeLabel(r)
			}
			m.observer.ObserveHTTP(route, r.Method, rw.statusCode, duration)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// GenerateRequestID returns a short random request ID.
func GenerateRequestID() string {
	return "req_" + uuid.New().String()[:8]
}

// validRequestID accepts client supplied IDs that are short and printable.
func validRequestID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}
