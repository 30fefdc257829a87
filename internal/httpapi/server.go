// Package httpapi exposes the bottle exchange over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"riverbank/internal/config"
	"riverbank/internal/metrics"
	"riverbank/internal/riverbank"
)

// DefaultRetryAfter is advertised on 429 responses.
const DefaultRetryAfter = time.Minute

// Options configures the HTTP surface.
type Options struct {
	PathPrefix     string
	OriginHeaders  []string
	AllowedOrigins []string
	AllowLocalhost bool
	MaxConcurrent  int
	RetryAfter     time.Duration
}

// OptionsFromConfig maps the server section of the config file to Options.
func OptionsFromConfig(cfg config.ServerConfig, window time.Duration) Options {
	return Options{
		PathPrefix:     cfg.PathPrefix,
		OriginHeaders:  cfg.OriginHeaders,
		AllowedOrigins: cfg.AllowedOrigins,
		AllowLocalhost: cfg.AllowLocalhost,
		MaxConcurrent:  cfg.MaxConcurrent,
		RetryAfter:     window,
	}
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server routes requests to the exchange service.
type Server struct {
	svc     *riverbank.Service
	pinger  Pinger
	logger  riverbank.Logger
	metrics *metrics.Metrics
	opts    Options
	handler http.Handler
}

// NewServer builds the router and middleware chain. metrics may be nil.
func NewServer(svc *riverbank.Service, pinger Pinger, logger riverbank.Logger, m *metrics.Metrics, opts Options) *Server {
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = DefaultRetryAfter
	}
	if len(opts.OriginHeaders) == 0 {
		opts.OriginHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For"}
	}

	s := &Server{
		svc:     svc,
		pinger:  pinger,
		logger:  logger,
		metrics: m,
		opts:    opts,
	}

	r := mux.NewRouter()
	r.Use(s.instrument)

	api := r
	if prefix := strings.TrimSuffix(opts.PathPrefix, "/"); prefix != "" {
		api = r.PathPrefix(prefix).Subrouter()
	}
	api.HandleFunc("/bottles/throw", s.handleThrow).Methods(http.MethodPost)
	api.HandleFunc("/bottles/{id}/report", s.handleReport).Methods(http.MethodPost)
	api.HandleFunc("/bottles/{id}/react", s.handleReact).Methods(http.MethodPost)
	api.HandleFunc("/false-positive", s.handleFalsePositive).Methods(http.MethodPost)

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	var h http.Handler = r
	h = concurrencyLimit(opts.MaxConcurrent, h)
	h = s.accessLog(h)
	h = cors(newOriginPolicy(opts.AllowedOrigins, opts.AllowLocalhost), h)
	s.handler = h
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
