// Package tenant maps request hosts onto workspace subdomains.
//
// Every workspace is served from <slug>.<root-domain>; the root domain
// itself carries the marketing/auth/workspace-selection surface. The
// functions here are pure so they can be shared by the edge dispatch
// middleware, the navigation guard, and the client SDK.
package tenant

import (
	"strings"
)

// Resolve derives the workspace slug from a request host.
//
// Both host and rootDomain may carry a port (local development); ports are
// ignored for the comparison. A host equal to the root domain, or one that
// is not a proper subdomain of it, resolves to no tenant.
func Resolve(host, rootDomain string) (string, bool) {
	hostname := stripPort(host)
	root := stripPort(rootDomain)

	// Local development: "acme.localhost:3000" style hosts. The first
	// label is the slug unless it is itself "localhost".
	if strings.Contains(hostname, "localhost") {
		parts := strings.Split(hostname, ".")
		if len(parts) > 1 && !strings.Contains(parts[0], "localhost") {
			return parts[0], true
		}
		return "", false
	}

	if strings.HasSuffix(hostname, "."+root) {
		slug := strings.TrimSuffix(hostname, "."+root)
		if slug != "" {
			return slug, true
		}
	}

	return "", false
}

// CookieDomain returns the domain attribute that scopes credentials to the
// shared parent domain, so a session survives navigation between workspace
// subdomains and the root domain.
func CookieDomain(rootDomain string) string {
	root := stripPort(rootDomain)
	if strings.Contains(root, "localhost") {
		return "localhost"
	}
	return "." + root
}

// URL builds a qualified absolute target (protocol + domain + path).
// With an empty slug the target is on the root domain. The navigation
// guard uses this for denial redirects that must leave the current
// subdomain context.
func URL(scheme, slug, rootDomain, path string) string {
	if scheme == "" {
		scheme = "https"
	}
	host := rootDomain
	if slug != "" {
		host = slug + "." + rootDomain
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return scheme + "://" + host + path
}

func stripPort(h string) string {
	if i := strings.IndexByte(h, ':'); i >= 0 {
		return h[:i]
	}
	return h
}
