package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Database file size gauges ---
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	// --- DB query operations ---
	for _, op := range []string{"initialize_schema", "create_swing", "get_swing",
		"list_swings", "update_swing_status", "set_swing_object", "delete_swing",
		"claim_pending_swings", "upsert_score", "get_score", "create_drill",
		"list_drills", "delete_drill", "check_drill", "uncheck_drill",
		"get_checklist", "progress_series", "calculate_stats", "vacuum"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	// --- Upload sources ---
	for _, source := range []string{"multipart", "base64"} {
		UploadsTotal.WithLabelValues(source, "success")
		UploadsTotal.WithLabelValues(source, "error")
	}

	// --- Transcode outcomes ---
	for _, status := range []string{"success", "error", "fallback"} {
		TranscodeJobsTotal.WithLabelValues(status)
	}

	// --- Object storage operations ---
	for _, op := range []string{"put", "presign", "list", "delete"} {
		ObjectStoreOperationsTotal.WithLabelValues(op, "success")
		ObjectStoreOperationsTotal.WithLabelValues(op, "error")
		ObjectStoreOperationDuration.WithLabelValues(op)
	}

	// --- Analyzer outcomes ---
	for _, status := range []string{"success", "error"} {
		AnalyzerRequestsTotal.WithLabelValues(status)
	}

	// --- Processor outcomes ---
	for _, status := range []string{"success", "failed", "error"} {
		ProcessorSwingsTotal.WithLabelValues(status)
	}

	// --- Poster backends ---
	for _, backend := range []string{"ffmpeg", "vips", "imaging"} {
		PosterGenerationsTotal.WithLabelValues(backend, "success")
		PosterGenerationsTotal.WithLabelValues(backend, "error")
	}

	// --- Auth outcomes ---
	for _, status := range []string{"success", "missing", "invalid"} {
		AuthChecksTotal.WithLabelValues(status)
	}

	// --- Drill toggle actions ---
	for _, action := range []string{"check", "uncheck"} {
		DrillChecksTotal.WithLabelValues(action)
	}

	// --- Swing status gauges ---
	for _, status := range []string{"pending", "ready", "failed"} {
		SwingsTotal.WithLabelValues(status)
	}
}
