package httputil

import (
	"net/http"
	"time"

	"github.com/rishabhxchoudhary/fractal/pkg/tenant"
)

// CookieConfig holds cookie configuration. Auth cookies are scoped to the
// parent of the root domain so that a session issued on the apex is sent
// on every workspace subdomain as well.
type CookieConfig struct {
	Domain   string
	Path     string
	Secure   bool
	SameSite http.SameSite
}

// NewCookieConfig builds the cookie configuration for a root domain.
func NewCookieConfig(rootDomain string, secure bool) CookieConfig {
	return CookieConfig{
		Domain:   tenant.CookieDomain(rootDomain),
		Path:     "/",
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetAuthCookies sets HttpOnly cookies for access and refresh tokens.
func SetAuthCookies(w http.ResponseWriter, accessToken, refreshToken string, accessTTL, refreshTTL time.Duration, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   int(accessTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   int(refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}

// ClearAuthCookies clears auth cookies.
func ClearAuthCookies(w http.ResponseWriter, cfg CookieConfig) {
	for _, name := range []string{"access_token", "refresh_token"} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     cfg.Path,
			Domain:   cfg.Domain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   cfg.Secure,
			SameSite: cfg.SameSite,
		})
	}
}

// GetAccessTokenFromCookie extracts the access token from its cookie.
func GetAccessTokenFromCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie("access_token")
	if err != nil {
		return "", false
	}
	return cookie.Value, true
}

// GetRefreshTokenFromCookie extracts the refresh token from its cookie.
func GetRefreshTokenFromCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie("refresh_token")
	if err != nil {
		return "", false
	}
	return cookie.Value, true
}

// IsAPIClient checks whether the request comes from a non browser client
// that handles tokens itself. API clients set header: X-Client-Type: api
func IsAPIClient(r *http.Request) bool {
	return r.Header.Get("X-Client-Type") == "api"
}
