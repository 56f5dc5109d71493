package handler

import (
	"net/http"
	"time"
)

// StatusHandler serves the process configuration summary.
type StatusHandler struct {
	Mode      string
	Exchanges []string
	Interval  time.Duration
	Sinks     []string
	StartedAt time.Time
}

// GetStatus responds with mode, scanned exchanges, interval and sinks.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.Mode,
		"exchanges":      h.Exchanges,
		"interval":       h.Interval.String(),
		"sinks":          h.Sinks,
		"uptime_seconds": int64(time.Since(h.StartedAt).Seconds()),
	})
}
