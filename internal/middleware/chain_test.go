package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// newTestChain はサーバーと同じ順序でミドルウェアを積んだchiルーターを返す。
func newTestChain(t *testing.T, buf *bytes.Buffer, rl *RateLimiter) *chi.Mux {
	t.Helper()
	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware())
	r.Use(NewLoggingMiddleware(newTestLogger(buf)))
	r.Use(NewSecurityHeadersMiddleware())
	r.Use(NewCORSMiddleware("*"))
	r.Use(rl.Middleware())

	r.Get("/api/ok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/api/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	return r
}

// TestMiddlewareChain_SetsAllHeaders はチェーン通過後に各ミドルウェアのヘッダーが揃うことを検証する。
func TestMiddlewareChain_SetsAllHeaders(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	w := httptest.NewRecorder()
	newTestChain(t, &buf, rl).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ok", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	for _, h := range []string{
		RequestIDHeader,
		"X-Content-Type-Options",
		"X-Frame-Options",
		"Content-Security-Policy",
		"Access-Control-Allow-Origin",
	} {
		if resp.Header.Get(h) == "" {
			t.Errorf("expected %s header", h)
		}
	}
}

// TestMiddlewareChain_PanicReturnsJSON500 はpanicが500のJSONエラーになり、ログに記録されることを検証する。
func TestMiddlewareChain_PanicReturnsJSON500(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	w := httptest.NewRecorder()
	newTestChain(t, &buf, rl).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/panic", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Error != InternalServerErrorMessage {
		t.Errorf("error = %q, want %q", body.Error, InternalServerErrorMessage)
	}
	if body.Timestamp.IsZero() {
		t.Error("expected timestamp")
	}
}

// TestMiddlewareChain_RateLimitedStillHasRequestID はレート制限で拒否されたレスポンスにもリクエストIDが付くことを検証する。
func TestMiddlewareChain_RateLimitedStillHasRequestID(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	chain := newTestChain(t, &buf, rl)
	chain.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/ok", nil))

	w := httptest.NewRecorder()
	chain.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ok", nil))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Result().Header.Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID on rate limited response")
	}
}

// TestRecoveryMiddleware_PassesThrough はpanicがなければ何もしないことを検証する。
func TestRecoveryMiddleware_PassesThrough(t *testing.T) {
	handler := NewRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	handler := NewSecurityHeadersMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	tests := []struct {
		header string
		want   string
	}{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
		{"Cache-Control", "no-store"},
	}
	for _, tt := range tests {
		if got := w.Result().Header.Get(tt.header); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
		}
	}
}
