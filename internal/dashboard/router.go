// ABOUTME: chi router for the read-only dashboard API
// ABOUTME: Wires middleware, CORS, and the stats, leaderboard, logs, and health routes

package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"

	"github.com/2389/fanout-gateway/internal/config"
	"github.com/2389/fanout-gateway/internal/state"
	gwtelemetry "github.com/2389/fanout-gateway/internal/telemetry"
)

const instrumentationName = "github.com/2389/fanout-gateway/internal/dashboard"

// Options configures the dashboard router.
type Options struct {
	// RecentLogsLimit caps /logs. Zero means config.DefaultRecentLogsLimit.
	RecentLogsLimit int
	Logger          *slog.Logger
	// Tracer defaults to the global provider.
	Tracer trace.Tracer
}

type server struct {
	state       *state.State
	recentLimit int
	logger      *slog.Logger
}

// NewRouter returns the dashboard's HTTP handler. It reads from st and never
// writes to it.
func NewRouter(st *state.State, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "dashboard")

	tracer := opts.Tracer
	if tracer == nil {
		tracer = gwtelemetry.Tracer(instrumentationName)
	}

	limit := opts.RecentLogsLimit
	if limit <= 0 {
		limit = config.DefaultRecentLogsLimit
	}

	s := &server{state: st, recentLimit: limit, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(logger))
	r.Use(telemetry(tracer))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/stats", s.handleStats)
	r.Get("/leaderboard", s.handleLeaderboard)
	r.Get("/logs", s.handleLogs)
	r.Get("/summary", s.handleSummary)

	r.Get("/health", s.handleHealth)
	r.Get("/health/ready", s.handleReady)

	return r
}
