package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swing_lab_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swing_lab_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swing_lab_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swing_lab_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swing_lab_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swing_lab_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swing_lab_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Upload metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swing_lab_uploads_total",
			Help: "Total number of swing video uploads",
		},
		[]string{"source", "status"}, // source: "multipart", "base64"
	)

	UploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swing_lab_upload_bytes",
			Help:    "Size of uploaded swing videos in bytes",
			Buckets: prometheus.ExponentialBuckets(1<<20, 2, 10), // 1MB .. 512MB
		},
	)
)

// Transcoder metrics
var (
	TranscodeJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swing_lab_transcode_jobs_total",
			Help: "Total number of compression jobs",
		},
		[]string{"status"}, // "success", "error", "fallback"
	)

	TranscodeJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swing_lab_transcode_job_duration_seconds",
			Help:    "Compression job duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	TranscodeJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swing_lab_transcode_jobs_in_progress",
			Help: "Number of compression jobs currently in progress",
		},
	)

	TranscodeBytesSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swing_lab_transcode_bytes_saved_total",
			Help: "Total bytes saved by compression before upload",
		},
	)
)

// Object storage metrics
var (
	ObjectStoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swing_lab_objectstore_operations_total",
			Help: "Total number of object storage operations",
		},
		[]string{"operation", "status"}, // operation: "put", "presign", "list", "delete"
	)

	ObjectStoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swing_lab_objectstore_operation_duration_seconds",
			Help:    "Object storage operation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	ObjectStoreUploadedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swing_lab_objectstore_uploaded_bytes_total",
			Help: "Total bytes uploaded to object storage",
		},
	)
)

// Analyzer metrics
var (
	AnalyzerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swing_lab_analyzer_requests_total",
			Help: "Total number of score requests to the analysis service",
		},
		[]string{"status"},
	)

	AnalyzerRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swing_lab_analyzer_request_duration_seconds",
			Help:    "Analysis service request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

// Processor metrics
var (
	ProcessorSwingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swing_lab_processor_swings_total",
			Help: "Total number of swings processed by the pipeline",
		},
		[]string{"status"}, // "success", "failed", "error"
	)

	ProcessorSwingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swing_lab_processor_swing_duration_seconds",
			Help:    "End-to-end processing duration per swing in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	ProcessorQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swing_lab_processor_queue_depth",
			Help: "Number of swings waiting in the processing queue",
		},
	)

	ProcessorSweepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swing_lab_processor_sweeps_total",
			Help: "Total number of periodic sweeps for pending swings",
		},
	)

	ProcessorRequeuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swing_lab_processor_requeued_total",
			Help: "Total number of swings re-queued by sweeps",
		},
	)

	ProcessorIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swing_lab_processor_running",
			Help: "Whether the processing pipeline is running (1 = running, 0 = stopped)",
		},
	)
)

// Poster metrics
var (
	PosterGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swing_lab_poster_generations_total",
			Help: "Total number of poster frame generations",
		},
		[]string{"backend", "status"}, // backend: "vips", "imaging"
	)

	PosterGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swing_lab_poster_generation_duration_seconds",
			Help:    "Poster frame generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// Authentication metrics
var (
	AuthChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swing_lab_auth_checks_total",
			Help: "Total number of bearer token validations",
		},
		[]string{"status"},
	)
)

// Drill metrics
var (
	DrillChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swing_lab_drill_checks_total",
			Help: "Total number of drill checklist toggles",
		},
		[]string{"action"}, // "check", "uncheck"
	)
)

// Library metrics
var (
	SwingsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swing_lab_swings_total",
			Help: "Total number of stored swings by status",
		},
		[]string{"status"},
	)

	ScoresTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swing_lab_scores_total",
			Help: "Total number of stored swing scores",
		},
	)

	DrillsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swing_lab_drills_total",
			Help: "Total number of practice drills",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swing_lab_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
