package limiter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"
)

func TestAllowEnforcesBurst(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 3)

	for i := 0; i < 3; i++ {
		if !l.Allow("203.0.113.9:1234") {
			t.Fatalf("request %d denied within burst", i)
		}
	}
	if l.Allow("203.0.113.9:1234") {
		t.Fatal("request beyond burst allowed")
	}
}

func TestAllowKeysByHostNotPort(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1)

	if !l.Allow("203.0.113.9:1111") {
		t.Fatal("first request denied")
	}
	if l.Allow("203.0.113.9:2222") {
		t.Fatal("same host on a new port got a fresh bucket")
	}
	if !l.Allow("203.0.113.10:1111") {
		t.Fatal("different host shares a bucket")
	}
}

func TestAllowAcceptsBareIP(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1)

	if !l.Allow("203.0.113.9") {
		t.Fatal("bare IP denied")
	}
	if l.Allow("203.0.113.9:4567") {
		t.Fatal("bare IP and host:port treated as different keys")
	}
}

func TestGetLimiterReturnsSameInstance(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(5), 10)

	first := l.GetLimiter("203.0.113.9")
	second := l.GetLimiter("203.0.113.9")
	if first != second {
		t.Fatal("GetLimiter created a second bucket for the same IP")
	}
}

func TestMiddlewareRejectsWithTooManyRequests(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1)

	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	makeRequest := func() int {
		req := httptest.NewRequest(http.MethodGet, "/stats", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := makeRequest(); code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", code)
	}
	if code := makeRequest(); code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", code)
	}
}
