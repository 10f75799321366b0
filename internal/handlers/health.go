package handlers

import (
	"net/http"
	"runtime"

	"swing-lab/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status        string `json:"status"`
	Ready         bool   `json:"ready"`
	Version       string `json:"version"`
	Uptime        string `json:"uptime"`
	QueueDepth    int    `json:"queueDepth"`
	Processing    int    `json:"processing"`
	Workers       int    `json:"workers"`
	LastProcessed string `json:"lastProcessed,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Stats summary
	TotalSwings   int `json:"totalSwings"`
	PendingSwings int `json:"pendingSwings"`
	FailedSwings  int `json:"failedSwings"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	healthStatus := h.pipeline.GetHealthStatus()
	stats := h.db.GetLibraryStats()

	response := HealthResponse{
		Ready:         healthStatus.Ready,
		Version:       startup.Version,
		Uptime:        healthStatus.Uptime,
		QueueDepth:    healthStatus.QueueDepth,
		Processing:    healthStatus.Processing,
		Workers:       healthStatus.Workers,
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		NumGoroutine:  runtime.NumGoroutine(),
		TotalSwings:   stats.TotalSwings,
		PendingSwings: stats.PendingSwings,
		FailedSwings:  stats.FailedSwings,
	}

	if healthStatus.Ready {
		response.Status = statusHealthy
	} else {
		response.Status = statusStarting
	}

	if !healthStatus.LastProcessed.IsZero() {
		response.LastProcessed = healthStatus.LastProcessed.Format("2006-01-02T15:04:05Z07:00")
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthStatus.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the service is ready to accept traffic
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.pipeline.IsReady() {
		w.WriteHeader(http.StatusOK)
		writeJSON(w, map[string]string{
			"status": "ready",
		})
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
	}
}
