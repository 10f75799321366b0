package handlers

import (
	"net/http"
	"strconv"

	"swing-lab/internal/auth"
	"swing-lab/internal/logging"
)

const (
	defaultProgressDays = 30
	maxProgressDays     = 365
)

// GetProgress returns per-day score aggregates for the progress chart.
func (h *Handlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	days := defaultProgressDays
	if v, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil && v > 0 {
		days = v
	}
	if days > maxProgressDays {
		days = maxProgressDays
	}

	summary, err := h.db.ProgressSeries(r.Context(), userID, days)
	if err != nil {
		logging.Error("Failed to build progress series for %s: %v", userID, err)
		writeJSONError(w, "Failed to get progress", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, summary)
}

// GetStats returns the cached library statistics.
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.db.GetLibraryStats())
}
