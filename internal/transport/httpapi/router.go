// Package httpapi assembles the relay's HTTP surface: health, metrics, the
// session-token key set and the websocket endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"time"

	"relay/internal/observability/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type KeySet interface {
	PublicJWK() map[string]any
}

type Options struct {
	CORSOrigins []string
	RateLimit   int
	RateWindow  time.Duration
	DB          Pinger
	Keys        KeySet // optional
	WS          http.Handler
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.WithRequestAndTrace)
	r.Use(middleware.WithMetrics)

	if opts.RateLimit > 0 && opts.RateWindow > 0 {
		r.Use(httprate.LimitByIP(opts.RateLimit, opts.RateWindow))
	}
	origins := originsIfSet(opts.CORSOrigins)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		// Credentials only for an explicit allow list, never for "*".
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if opts.DB != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := opts.DB.Ping(ctx); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	if opts.Keys != nil {
		r.Get("/.well-known/jwks.json", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"keys": []any{opts.Keys.PublicJWK()}})
		})
	}

	if opts.WS != nil {
		r.Handle("/ws", opts.WS)
	}
	return r
}

// originsIfSet drops blanks; an empty list allows every origin.
func originsIfSet(in []string) []string {
	out := []string{}
	for _, o := range in {
		if s := strings.TrimSpace(o); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
