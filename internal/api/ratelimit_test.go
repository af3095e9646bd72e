package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func fixedLimiter(perSecond float64, burst int) (*RateLimiter, *time.Time) {
	now := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(perSecond, burst)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiterBurstThenRefill(t *testing.T) {
	rl, now := fixedLimiter(1, 3)
	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow("a"); !ok {
			t.Fatalf("request %d denied inside burst", i)
		}
	}
	ok, wait := rl.Allow("a")
	if ok {
		t.Fatal("request past burst allowed")
	}
	if wait <= 0 || wait > time.Second {
		t.Errorf("wait = %v, want (0, 1s]", wait)
	}
	if ok, _ := rl.Allow("b"); !ok {
		t.Error("other client limited")
	}

	*now = now.Add(time.Second)
	if ok, _ := rl.Allow("a"); !ok {
		t.Error("token not refilled after 1s")
	}
}

func TestRateLimiterForgetsIdleClients(t *testing.T) {
	rl, now := fixedLimiter(1, 1)
	rl.Allow("a")
	rl.Allow("b")
	*now = now.Add(2 * clientIdle)
	rl.Allow("c")
	if n := rl.size(); n != 1 {
		t.Errorf("%d clients tracked after idle sweep, want 1", n)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl, _ := fixedLimiter(1, 1)
	h := RateLimitMiddleware(rl, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest("GET", "/api/v1/status", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", rec.Header().Get("Retry-After"))
	}

	proxied := httptest.NewRequest("GET", "/api/v1/status", nil)
	proxied.RemoteAddr = "10.0.0.1:5555"
	proxied.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, proxied)
	if rec.Code != http.StatusNoContent {
		t.Errorf("forwarded client limited with proxy's bucket: %d", rec.Code)
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "[::1]:8080"
	if got := clientKey(req); got != "::1" {
		t.Errorf("clientKey = %q, want ::1", got)
	}
}
