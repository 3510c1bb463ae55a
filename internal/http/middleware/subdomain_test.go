package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSubdomain(t *testing.T) {
	tests := []struct {
		name       string
		host       string
		rootDomain string
		wantSlug   string
		wantFound  bool
	}{
		{
			name:       "workspace subdomain",
			host:       "acme.fractal.app",
			rootDomain: "fractal.app",
			wantSlug:   "acme",
			wantFound:  true,
		},
		{
			name:       "root domain has no tenant",
			host:       "fractal.app",
			rootDomain: "fractal.app",
			wantFound:  false,
		},
		{
			name:       "local development host with port",
			host:       "acme.localhost:3000",
			rootDomain: "localhost",
			wantSlug:   "acme",
			wantFound:  true,
		},
		{
			name:       "bare localhost has no tenant",
			host:       "localhost:3000",
			rootDomain: "localhost",
			wantFound:  false,
		},
		{
			name:       "unrelated domain has no tenant",
			host:       "evil.example.com",
			rootDomain: "fractal.app",
			wantFound:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotSlug string
			var gotFound bool

			handler := Subdomain(tt.rootDomain)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotSlug, gotFound = GetTenantSlug(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/", nil)
			req.Host = tt.host
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if gotFound != tt.wantFound {
				t.Fatalf("tenant found = %v, want %v", gotFound, tt.wantFound)
			}
			if gotFound && gotSlug != tt.wantSlug {
				t.Errorf("slug = %q, want %q", gotSlug, tt.wantSlug)
			}
		})
	}
}
