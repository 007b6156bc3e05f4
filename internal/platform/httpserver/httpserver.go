package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bastion/internal/loginguard"
	"bastion/pkg/platform/middleware/metadata"
)

// New builds an HTTP server with sane defaults for this project.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthCheckerFunc adapts a function to HealthChecker.
type HealthCheckerFunc func(ctx context.Context) error

func (f HealthCheckerFunc) Health(ctx context.Context) error { return f(ctx) }

// QueueProbe exposes the audit writer's backlog for the ops endpoint.
type QueueProbe interface {
	QueueDepth() int
	Dropped() int64
}

// LockoutAdmin is the slice of the login guard exposed to operators.
type LockoutAdmin interface {
	SecurityStatus(ctx context.Context, principal string) (loginguard.SecurityStatus, error)
	Unlock(ctx context.Context, principal string) error
}

// OpsDeps are the dependencies surfaced on the ops router.
type OpsDeps struct {
	Health  map[string]HealthChecker
	Audit   QueueProbe
	Lockout LockoutAdmin
}

// NewOpsRouter builds the operational surface: liveness, Prometheus metrics,
// the audit queue probe, and lockout administration. This router carries no
// business endpoints.
func NewOpsRouter(deps OpsDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	// lockout administration emits audit events; capture client metadata so
	// the trail records who unlocked whom
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(deps.Health))
		for name, checker := range deps.Health {
			if err := checker.Health(ctx); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		writeJSON(w, status, checks)
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Get("/internal/audit/queue", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"depth":   deps.Audit.QueueDepth(),
			"dropped": deps.Audit.Dropped(),
		})
	})

	r.Route("/internal/lockout/{principal}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			principal := chi.URLParam(req, "principal")
			status, err := deps.Lockout.SecurityStatus(req.Context(), principal)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"locked":             status.Locked,
				"failed_attempts":    status.FailedAttempts,
				"remaining_lock_ms":  status.RemainingLock.Milliseconds(),
				"remaining_attempts": status.RemainingAttempts,
			})
		})
		r.Delete("/", func(w http.ResponseWriter, req *http.Request) {
			principal := chi.URLParam(req, "principal")
			if err := deps.Lockout.Unlock(req.Context(), principal); err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
