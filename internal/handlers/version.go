package handlers

import (
	"net/http"

	"swing-lab/internal/startup"
)

// GetVersion reports version, commit, and Go runtime for the running
// binary. Not cached so a rollout is visible immediately.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, startup.GetBuildInfo())
}
