package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"agriconnect.org/internal/obs"
)

// Router is the gateway's http.Handler. It holds no session or account
// state; each route's proxying shares nothing mutable, so one failing
// upstream cannot cascade into another route.
type Router struct {
	routes         []route
	allowedOrigins map[string]struct{}
	client         *http.Client
}

// New compiles the route table. The upstream timeout bounds every proxied
// call so a hung downstream service cannot pin gateway connections.
func New(rules []Rule, allowedOrigins []string, upstreamTimeout time.Duration) (*Router, error) {
	routes, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.TrimSuffix(strings.TrimSpace(o), "/")
		if o != "" {
			origins[o] = struct{}{}
		}
	}
	if upstreamTimeout <= 0 {
		upstreamTimeout = 30 * time.Second
	}
	return &Router{
		routes:         routes,
		allowedOrigins: origins,
		client: &http.Client{
			Timeout: upstreamTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Redirects from upstreams go back to the client as-is.
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

const (
	corsMethods = "GET,POST,PUT,PATCH,DELETE,OPTIONS"
	corsHeaders = "Content-Type,Authorization,X-Requested-With,Accept,Origin"
)

func (g *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); origin != "" {
		if !g.originAllowed(origin) {
			writeJSON(w, http.StatusForbidden, map[string]any{
				"message": fmt.Sprintf("Origin %s not allowed by CORS", origin),
			})
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			// Preflight is satisfied locally, never forwarded upstream.
			w.Header().Set("Access-Control-Allow-Methods", corsMethods)
			w.Header().Set("Access-Control-Allow-Headers", corsHeaders)
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	switch r.URL.Path {
	case "/":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("API Gateway is running."))
		return
	case "/healthz":
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": "agri-gateway"})
		return
	case "/metrics":
		obs.Handler().ServeHTTP(w, r)
		return
	}

	rt, ok := match(g.routes, r.URL.Path)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"message": fmt.Sprintf("Route %s %s not found on API Gateway.", r.Method, r.URL.Path),
		})
		return
	}

	g.forward(w, r, rt)
}

func (g *Router) originAllowed(origin string) bool {
	_, ok := g.allowedOrigins[strings.TrimSuffix(origin, "/")]
	return ok
}

func (g *Router) forward(w http.ResponseWriter, r *http.Request, rt route) {
	start := time.Now()

	body, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "unreadable request body"})
		return
	}

	target := *rt.target
	target.Path = singleJoiningSlash(target.Path, rt.rewritePath(r.URL.Path))
	target.RawQuery = r.URL.RawQuery

	upstream, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), bytes.NewReader(body))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "failed to build upstream request"})
		return
	}
	copyHeaders(upstream.Header, r.Header)
	upstream.ContentLength = int64(len(body))
	if len(body) > 0 && upstream.Header.Get("Content-Type") == "" {
		upstream.Header.Set("Content-Type", "application/json")
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		upstream.Header.Set("X-Forwarded-For", host)
	}

	resp, err := g.client.Do(upstream)
	if err != nil {
		// The transport error stays in the log; the client gets a
		// generic 502.
		obs.LogRequest(map[string]any{
			"ts": time.Now().UTC().Format(time.RFC3339), "level": "error",
			"msg": "proxy_upstream_error", "method": r.Method, "path": r.URL.Path,
			"target": target.String(), "error": err.Error(),
		})
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("Proxy error or upstream service unavailable."))
		return
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	written, _ := io.Copy(w, resp.Body)

	obs.LogRequest(map[string]any{
		"ts": time.Now().UTC().Format(time.RFC3339), "level": "info",
		"msg": "proxy_complete", "method": r.Method, "path": r.URL.Path,
		"target": target.String(), "status": resp.StatusCode,
		"bytes": written, "duration_ms": time.Since(start).Milliseconds(),
	})
}

// readBody buffers the request body so Content-Length stays correct
// downstream. JSON bodies are re-serialized (compacted), matching how the
// gateway has always normalized forwarded payloads.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var compact bytes.Buffer
		if err := json.Compact(&compact, body); err == nil {
			return compact.Bytes(), nil
		}
	}
	return body, nil
}

// Hop-by-hop headers are meaningful per connection and must not be
// forwarded in either direction.
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Proxy-Connection":    {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if _, hop := hopByHopHeaders[http.CanonicalHeaderKey(key)]; hop {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
