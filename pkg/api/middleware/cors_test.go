package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goclaw/sigmux/config"
)

func corsConfig() *config.CORSConfig {
	return &config.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"http://localhost:3000"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         3600,
	}
}

func serveCORS(cfg *config.CORSConfig, method, origin string) (*httptest.ResponseRecorder, *bool) {
	reached := false
	h := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(method, "/status", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w, &reached
}

func TestCORSAllowedOrigin(t *testing.T) {
	w, reached := serveCORS(corsConfig(), http.MethodGet, "http://localhost:3000")

	if !*reached {
		t.Fatal("handler not reached for a plain GET")
	}
	h := w.Header()
	if got := h.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q, want the request origin", got)
	}
	if got := h.Get("Access-Control-Allow-Methods"); got != "GET, OPTIONS" {
		t.Errorf("Allow-Methods = %q, want %q", got, "GET, OPTIONS")
	}
	if got := h.Get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Errorf("Allow-Headers = %q, want Content-Type", got)
	}
	if got := h.Get("Access-Control-Expose-Headers"); got != "X-Request-ID" {
		t.Errorf("Expose-Headers = %q, want X-Request-ID", got)
	}
	if got := h.Get("Access-Control-Max-Age"); got != "3600" {
		t.Errorf("Max-Age = %q, want 3600", got)
	}
	if got := h.Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want Origin", got)
	}
}

func TestCORSWildcardEchoesOrigin(t *testing.T) {
	cfg := corsConfig()
	cfg.AllowedOrigins = []string{"*"}

	w, _ := serveCORS(cfg, http.MethodGet, "http://anywhere.example")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://anywhere.example" {
		t.Errorf("Allow-Origin = %q, want the request origin echoed", got)
	}
}

func TestCORSRejectedOriginPassesThroughBare(t *testing.T) {
	w, reached := serveCORS(corsConfig(), http.MethodGet, "http://evil.example")

	if !*reached {
		t.Fatal("handler not reached; a denied origin is still served, just without CORS headers")
	}
	for _, name := range []string{
		"Access-Control-Allow-Origin",
		"Access-Control-Allow-Methods",
		"Access-Control-Allow-Headers",
	} {
		if got := w.Header().Get(name); got != "" {
			t.Errorf("%s = %q, want unset for a denied origin", name, got)
		}
	}
}

func TestCORSIgnoresSameOriginRequests(t *testing.T) {
	w, reached := serveCORS(corsConfig(), http.MethodGet, "")

	if !*reached {
		t.Fatal("handler not reached")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q for a request without Origin, want unset", got)
	}
}

func TestCORSDisabled(t *testing.T) {
	cfg := corsConfig()
	cfg.Enabled = false

	w, reached := serveCORS(cfg, http.MethodGet, "http://localhost:3000")

	if !*reached {
		t.Fatal("handler not reached with CORS disabled")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q with CORS disabled, want unset", got)
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	w, reached := serveCORS(corsConfig(), http.MethodOptions, "http://localhost:3000")

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if *reached {
		t.Error("preflight request reached the handler")
	}
}

func TestCORSPreflightFromDeniedOriginReachesHandler(t *testing.T) {
	w, reached := serveCORS(corsConfig(), http.MethodOptions, "http://evil.example")

	if !*reached {
		t.Fatal("OPTIONS from a denied origin should fall through to the handler")
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want the handler's 200", w.Code)
	}
}

func TestCORSCredentials(t *testing.T) {
	cfg := corsConfig()
	cfg.AllowCredentials = true

	w, _ := serveCORS(cfg, http.MethodGet, "http://localhost:3000")

	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q, want true", got)
	}
}
