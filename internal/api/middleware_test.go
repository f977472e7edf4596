package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecoverMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := recoverMiddleware(requestLogMiddleware(inner))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/index", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rr.Code)
	}
}

func TestIPLimiter_PerClient(t *testing.T) {
	l := newIPLimiter(1, 1)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := l.middleware(inner)

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/pricegraph", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := do("10.0.0.1:5000"); code != http.StatusOK {
		t.Fatalf("first request: %d", code)
	}
	if code := do("10.0.0.1:5001"); code != http.StatusTooManyRequests {
		t.Fatalf("same IP, new port should share a bucket: %d", code)
	}
	if code := do("10.0.0.2:5000"); code != http.StatusOK {
		t.Fatalf("other client should not be limited: %d", code)
	}
}

func TestIPLimiter_Disabled(t *testing.T) {
	l := newIPLimiter(0, 0)
	handler := l.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 50; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/pricegraph", nil))
		if rr.Code != http.StatusNoContent {
			t.Fatalf("request %d limited while disabled", i)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:8080"
	if got := clientIP(req); got != "::1" {
		t.Fatalf("got %q", got)
	}
	req.RemoteAddr = "garbage"
	if got := clientIP(req); got != "garbage" {
		t.Fatalf("got %q", got)
	}
}

func TestParseLimit(t *testing.T) {
	cases := []struct {
		query    string
		deflt    int
		expected int
	}{
		{"", 20, 20},
		{"?limit=50", 20, 50},
		{"?limit=0", 20, 20},
		{"?limit=-5", 20, 20},
		{"?limit=abc", 20, 20},
		{"?limit=2000", 20, maxQueryLimit},
		{"?limit=1", 10, 1},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/history"+tc.query, nil)
		got := parseLimit(req, tc.deflt)
		if got != tc.expected {
			t.Fatalf("parseLimit(%q, %d) = %d, want %d", tc.query, tc.deflt, got, tc.expected)
		}
	}
}
