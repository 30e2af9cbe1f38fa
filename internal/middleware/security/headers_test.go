package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestHeadersMiddleware(t *testing.T) {
	mw := NewHeadersMiddleware(DefaultHeadersConfig())
	h := mw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/summary", nil))
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if got := rec.Header().Get("Content-Security-Policy"); !strings.Contains(got, "https://unpkg.com") {
		t.Errorf("CSP = %q", got)
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS on plain HTTP: %q", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/summary", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = serve(h, req)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
}

func TestEmptyValuesAreSkipped(t *testing.T) {
	h := NewHeadersMiddleware(HeadersConfig{XContentTypeOptions: "nosniff"}).
		Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, ok := rec.Header()["Content-Security-Policy"]; ok {
		t.Fatal("empty CSP should not be sent")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("configured header missing")
	}
}

func TestCacheHeaders(t *testing.T) {
	noop := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	rec := serve(StaticAssetMiddleware(3600)(noop), httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=3600" {
		t.Errorf("static Cache-Control = %q", got)
	}
	rec = serve(NoStore(noop), httptest.NewRequest(http.MethodGet, "/ui/summary", nil))
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("fragment Cache-Control = %q", got)
	}
}
