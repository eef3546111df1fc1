package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

// TenantIDKey is the context key for the tenant ID.
const TenantIDKey contextKey = "tenant_id"

// DefaultTenant is used when a request names no tenant.
const DefaultTenant = "default"

// TenantExtractor stores the request's tenant in the context. It checks the
// X-Tenant-Id header, then the tenant query parameter. Requests naming no
// tenant get no value, so GetTenantID can tell them apart from an explicit
// "default".
func TenantExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
		if tenant == "" {
			tenant = strings.TrimSpace(r.URL.Query().Get("tenant"))
		}
		if tenant == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), TenantIDKey, tenant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TenantFromContext returns the tenant set by TenantExtractor, if any.
func TenantFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(TenantIDKey).(string)
	return v, ok && v != ""
}

// GetTenantID returns the request tenant, or DefaultTenant.
func GetTenantID(ctx context.Context) string {
	if v, ok := TenantFromContext(ctx); ok {
		return v
	}
	return DefaultTenant
}
