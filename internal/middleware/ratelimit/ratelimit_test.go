package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllowBurstThenRefill(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 60, Burst: 2})
	defer rl.Stop()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("burst of 2 should be allowed")
	}
	if rl.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("other clients have their own bucket")
	}

	now = now.Add(time.Second)
	if !rl.Allow("a") {
		t.Fatal("one token should refill after a second")
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 10, IdleTimeout: time.Minute})
	defer rl.Stop()
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(2 * time.Minute)
	rl.Allow("new")

	if removed := rl.cleanupStaleEntries(); removed != 1 {
		t.Fatalf("removed %d", removed)
	}
	if rl.ActiveClients() != 1 {
		t.Fatalf("active = %d", rl.ActiveClients())
	}
}

func TestMiddlewareOnlyLimitsListedMethods(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1, Burst: 1})
	defer rl.Stop()

	limited := 0
	h := rl.Middleware(
		func(*http.Request) string { return "client" },
		func(w http.ResponseWriter, _ *http.Request) {
			limited++
			w.WriteHeader(http.StatusTooManyRequests)
		},
		http.MethodPost,
	)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/summary", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET should never be limited, got %d", rec.Code)
		}
	}

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/entries", nil))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/entries", nil))

	if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
		t.Fatalf("codes = %d, %d", first.Code, second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	if limited != 1 {
		t.Fatalf("onLimit called %d times", limited)
	}
}
