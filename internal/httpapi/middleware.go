package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// unknownOrigin is recorded when no trusted header identifies the client.
const unknownOrigin = "unknown"

// origin returns the client address from the first configured header that
// carries one. X-Forwarded-For contributes its first hop only. RemoteAddr is
// not consulted: behind the edge proxy it is always the proxy.
func (s *Server) origin(r *http.Request) string {
	for _, name := range s.opts.OriginHeaders {
		v := strings.TrimSpace(r.Header.Get(name))
		if v == "" {
			continue
		}
		if strings.EqualFold(name, "X-Forwarded-For") {
			v = strings.TrimSpace(strings.Split(v, ",")[0])
			if v == "" {
				continue
			}
		}
		return v
	}
	return unknownOrigin
}

type originPolicy struct {
	allowed        map[string]struct{}
	allowLocalhost bool
}

func newOriginPolicy(origins []string, allowLocalhost bool) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{}, len(origins)), allowLocalhost: allowLocalhost}
	for _, o := range origins {
		p.allowed[strings.TrimSuffix(o, "/")] = struct{}{}
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	if _, ok := p.allowed[origin]; ok {
		return true
	}
	if !p.allowLocalhost {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}

// cors answers preflight requests and decorates responses for allowed origins.
// Disallowed origins get no CORS headers, so browsers block the response.
func cors(policy originPolicy, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && policy.allows(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Set("Access-Control-Max-Age", "600")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type chanPool struct {
	sem chan struct{}
}

func newChanPool(size int) *chanPool {
	return &chanPool{sem: make(chan struct{}, size)}
}

func (p *chanPool) acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}

// concurrencyLimit caps the number of requests served at once. Waiting
// requests queue until a slot frees or the client goes away. limit <= 0
// disables the cap.
func concurrencyLimit(limit int, next http.Handler) http.Handler {
	if limit <= 0 {
		return next
	}
	pool := newChanPool(limit)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		release, ok := pool.acquire(r.Context())
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "overloaded", http.StatusText(http.StatusServiceUnavailable))
			return
		}
		defer release()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).Round(time.Microsecond),
		)
	})
}

// instrument records per-route request metrics. The route label is the
// path template so bottle ids do not explode label cardinality.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		s.metrics.InFlight(1)
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.InFlight(-1)
		s.metrics.ObserveRequest(route, rec.status, time.Since(start))
	})
}
