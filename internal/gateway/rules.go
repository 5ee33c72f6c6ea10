// Package gateway implements the single-entry reverse proxy in front of the
// backend services: longest-prefix route matching, path rewriting, verbatim
// response relay and per-route failure isolation.
package gateway

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Rule maps an inbound path prefix to an upstream service, rewriting the
// matched prefix. Rules are static configuration, loaded once at startup and
// immutable at runtime.
type Rule struct {
	// Prefix matches the inbound path: the prefix itself or anything
	// below it.
	Prefix string

	// Target is the upstream base URL.
	Target string

	// Rewrite replaces the matched prefix on the forwarded path.
	Rewrite string
}

// DefaultRules builds the deployment's route table from the two upstream
// base URLs.
func DefaultRules(authURL, mainURL string) []Rule {
	return []Rule{
		{Prefix: "/api/auth", Target: authURL, Rewrite: "/"},
		{Prefix: "/api/farmer", Target: mainURL, Rewrite: "/farmer"},
		{Prefix: "/api/marketplace", Target: mainURL, Rewrite: "/marketplace"},
		{Prefix: "/api/admin", Target: mainURL, Rewrite: "/admin"},
	}
}

// route is a compiled rule.
type route struct {
	prefix  string
	target  *url.URL
	rewrite string
}

func compileRules(rules []Rule) ([]route, error) {
	compiled := make([]route, 0, len(rules))
	for _, r := range rules {
		prefix := strings.TrimSuffix(r.Prefix, "/")
		if prefix == "" || !strings.HasPrefix(prefix, "/") {
			return nil, fmt.Errorf("gateway: invalid route prefix %q", r.Prefix)
		}
		target, err := url.Parse(r.Target)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("gateway: invalid target %q for prefix %q", r.Target, r.Prefix)
		}
		rewrite := r.Rewrite
		if rewrite == "" {
			rewrite = "/"
		}
		compiled = append(compiled, route{prefix: prefix, target: target, rewrite: rewrite})
	}
	// Longest prefix first, so /api/auth/google beats /api/auth if both
	// are configured.
	sort.SliceStable(compiled, func(i, j int) bool {
		return len(compiled[i].prefix) > len(compiled[j].prefix)
	})
	return compiled, nil
}

// match returns the longest configured prefix covering path.
func match(routes []route, path string) (route, bool) {
	for _, rt := range routes {
		if path == rt.prefix || strings.HasPrefix(path, rt.prefix+"/") {
			return rt, true
		}
	}
	return route{}, false
}

// rewritePath swaps the matched prefix for the route's rewrite segment.
func (rt route) rewritePath(path string) string {
	rest := strings.TrimPrefix(path, rt.prefix)
	return singleJoiningSlash(rt.rewrite, rest)
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash && b != "":
		return a + "/" + b
	}
	return a + b
}
