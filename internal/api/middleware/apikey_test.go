package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/advisorhub/mira/internal/api/middleware"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, req *http.Request) int {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	auth := middleware.NewAPIKeyAuth(nil)
	if auth.Enabled() {
		t.Error("Expected auth to be disabled with no keys")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/agent-chat", nil)
	if code := serve(auth.Middleware(okHandler()), req); code != http.StatusOK {
		t.Errorf("Disabled auth: status = %d, want %d", code, http.StatusOK)
	}
}

func TestAPIKeyAuth_Keys(t *testing.T) {
	auth := middleware.NewAPIKeyAuth([]string{"test-key-1", " test-key-2 ", ""})
	if !auth.Enabled() {
		t.Fatal("Expected auth to be enabled")
	}
	h := auth.Middleware(okHandler())

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		target string
		want   int
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer test-key-1") }, "/api/v1/agent-chat", http.StatusOK},
		{"x-api-key", func(r *http.Request) { r.Header.Set("X-API-Key", "test-key-2") }, "/api/v1/agent-chat", http.StatusOK},
		{"query", func(r *http.Request) {}, "/api/v1/agent-chat?api_key=test-key-1", http.StatusOK},
		{"invalid", func(r *http.Request) { r.Header.Set("Authorization", "Bearer wrong") }, "/api/v1/agent-chat", http.StatusUnauthorized},
		{"missing", func(r *http.Request) {}, "/api/v1/agent-chat", http.StatusUnauthorized},
		{"health public", func(r *http.Request) {}, "/health", http.StatusOK},
		{"version public", func(r *http.Request) {}, "/version", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.target, nil)
			tt.setup(req)
			if code := serve(h, req); code != tt.want {
				t.Errorf("status = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestAPIKeyAuth_PreflightAllowed(t *testing.T) {
	auth := middleware.NewAPIKeyAuth([]string{"k"})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/agent-chat", nil)
	if code := serve(auth.Middleware(okHandler()), req); code != http.StatusOK {
		t.Errorf("OPTIONS: status = %d, want %d", code, http.StatusOK)
	}
}

func TestAPIKeyAuth_AddRemoveKey(t *testing.T) {
	auth := middleware.NewAPIKeyAuth(nil)
	auth.AddKey("runtime-key")
	if !auth.Enabled() {
		t.Error("Should be enabled after AddKey")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/agent-chat", nil)
	req.Header.Set("X-API-Key", "runtime-key")
	if code := serve(auth.Middleware(okHandler()), req); code != http.StatusOK {
		t.Errorf("Runtime key: status = %d, want %d", code, http.StatusOK)
	}

	auth.RemoveKey("runtime-key")
	if auth.Enabled() {
		t.Error("Should be disabled after removing last key")
	}
}

func TestTenantExtractor(t *testing.T) {
	tests := []struct {
		name   string
		header string
		target string
		want   string
		set    bool
	}{
		{"header", "acme", "/x?tenant=other", "acme", true},
		{"query", "", "/x?tenant=other", "other", true},
		{"none", "", "/x", "default", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			var set bool
			h := middleware.TenantExtractor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = middleware.GetTenantID(r.Context())
				_, set = middleware.TenantFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("X-Tenant-Id", tt.header)
			}
			serve(h, req)
			if got != tt.want || set != tt.set {
				t.Errorf("GetTenantID() = %q (set %v), want %q (set %v)", got, set, tt.want, tt.set)
			}
		})
	}
}
