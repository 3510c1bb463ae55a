package middleware

import (
	"context"
	"net/http"

	"github.com/rishabhxchoudhary/fractal/pkg/tenant"
)

const (
	// TenantSlugKey is the context key for the subdomain slug, set only
	// when the request arrived on a workspace subdomain.
	TenantSlugKey contextKey = "tenant_slug"
)

// Subdomain resolves the workspace slug from the request Host and puts it
// on the context. Requests to the root domain itself pass through without
// a slug; handlers use GetTenantSlug to tell the two surfaces apart. The
// same handler tree serves both, so resolution happens once, here.
func Subdomain(rootDomain string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slug, ok := tenant.Resolve(r.Host, rootDomain); ok {
				ctx := context.WithValue(r.Context(), TenantSlugKey, slug)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetTenantSlug extracts the subdomain slug from the request context.
func GetTenantSlug(ctx context.Context) (string, bool) {
	slug, ok := ctx.Value(TenantSlugKey).(string)
	return slug, ok
}
