package api

import (
	"net/http"
	"time"

	"github.com/winston-domains/winston/internal/buildinfo"
	"github.com/winston-domains/winston/internal/config"
)

// HandleHealth returns a handler for GET /health. No authentication.
// The effective dry-run flag is surfaced here so operators can tell whether
// registrations are real or simulated.
func HandleHealth(cfg *config.EnvConfig, providerName string, start time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":         "ok",
			"timestamp":      time.Now().UTC().Format(time.RFC3339),
			"uptime_seconds": int64(time.Since(start).Seconds()),
			"provider":       providerName,
			"dry_run":        cfg.DryRun,
			"version":        buildinfo.Version,
		})
	}
}
