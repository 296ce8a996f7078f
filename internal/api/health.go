package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// readyTimeout bounds the readiness dependency check
const readyTimeout = 2 * time.Second

// Pinger is implemented by dependencies checked by the readiness check
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler returns a simple health check handler function
// that responds with a 200 OK status and JSON {"status":"ok"}
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// ReadyHandler reports whether the database answers. A nil pinger is always ready.
func ReadyHandler(pinger Pinger, logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			defer cancel()

			if err := pinger.Ping(ctx); err != nil {
				logger.Warnw("Readiness check failed", "error", err)
				respondWithJSON(w, logger, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
					"error":  err.Error(),
				})
				return
			}
		}

		respondWithJSON(w, logger, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// VersionHandler reports the build version and environment
func VersionHandler(version, environment string, logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, logger, http.StatusOK, map[string]string{
			"version":     version,
			"environment": environment,
		})
	}
}

// RootHandler greets callers of the API root
func RootHandler(logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, logger, http.StatusOK, map[string]string{
			"message": "Welcome to the file manager API",
		})
	}
}
