package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swing-lab/internal/analyzer"
	"swing-lab/internal/auth"
	"swing-lab/internal/database"
	"swing-lab/internal/handlers"
	"swing-lab/internal/logging"
	"swing-lab/internal/media"
	"swing-lab/internal/metrics"
	"swing-lab/internal/middleware"
	"swing-lab/internal/objectstore"
	"swing-lab/internal/processor"
	"swing-lab/internal/startup"
	"swing-lab/internal/transcoder"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()
	ctx := context.Background()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Initialize libvips for poster frame resizing; falls back to pure-Go
	// imaging if unavailable
	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, using fallback image processing: %v", err)
	}
	defer media.ShutdownVips()

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn("Database close error: %v", err)
		}
	}()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Initialize transcoder
	startup.LogTranscoderInit(config.CompressionEnabled)
	trans := transcoder.New(config.CompressionEnabled)

	// Connect to object storage
	storeStart := time.Now()
	store, err := objectstore.New(ctx, objectstore.Config{
		Bucket:    config.S3Bucket,
		Region:    config.S3Region,
		Endpoint:  config.S3Endpoint,
		AccessKey: config.S3AccessKey,
		SecretKey: config.S3SecretKey,
	})
	if err != nil {
		startup.LogFatal("Failed to connect to object storage: %v", err)
	}
	startup.LogObjectStoreInit(store.Bucket(), time.Since(storeStart))

	// Analyzer client (disabled when ANALYZER_URL is empty)
	scorer := analyzer.New(config.AnalyzerURL, config.AnalyzerTimeout)

	posters := media.NewPosterGenerator(trans, config.PosterDir)

	// Initialize and start the processing pipeline
	startup.LogProcessorInit(config.SweepInterval)
	proc := processor.New(db, trans, store, posters, scorer,
		config.CacheDir, config.SignedURLTTL, config.SweepInterval)
	proc.Start()
	startup.LogProcessorStarted()

	// Initialize handlers
	h := handlers.New(db, store, proc, config)

	// Setup router
	router := setupRouter(h, config.JWTSecret, config.StaticDir)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(router)

	// Apply metrics middleware
	metricsHandler := middleware.Metrics(middleware.DefaultMetricsConfig())(loggedHandler)

	// Apply compression middleware
	compressionConfig := middleware.DefaultCompressionConfig()
	handler := middleware.Compression(compressionConfig)(metricsHandler)

	// Create server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Start the metrics server and collector
	var collector *metrics.Collector
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metrics.InitializeMetrics()
		metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)

		collector = metrics.NewCollector(db, config.DatabasePath, 30*time.Second)
		collector.Start()

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:         ":" + config.MetricsPort,
			Handler:      metricsMux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv, proc, trans, collector)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers, jwtSecret []byte, staticDir string) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes (no auth required)
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth.Middleware(jwtSecret))

	// Swings
	api.HandleFunc("/swings", h.UploadSwing).Methods("POST")
	api.HandleFunc("/swings", h.ListSwings).Methods("GET")
	api.HandleFunc("/swings/{id}", h.GetSwing).Methods("GET")
	api.HandleFunc("/swings/{id}", h.DeleteSwing).Methods("DELETE")
	api.HandleFunc("/swings/{id}/video", h.StreamSwingVideo).Methods("GET")
	api.HandleFunc("/swings/{id}/poster", h.GetSwingPoster).Methods("GET")

	// Practice drills
	api.HandleFunc("/drills", h.CreateDrill).Methods("POST")
	api.HandleFunc("/drills", h.GetChecklist).Methods("GET")
	api.HandleFunc("/drills/{id}", h.DeleteDrill).Methods("DELETE")
	api.HandleFunc("/drills/{id}/check", h.CheckDrill).Methods("POST")
	api.HandleFunc("/drills/{id}/check", h.UncheckDrill).Methods("DELETE")

	// Progress
	api.HandleFunc("/progress", h.GetProgress).Methods("GET")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	// Built frontend
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))

	return r
}

func handleShutdown(srv, metricsSrv *http.Server, proc *processor.Processor, trans *transcoder.Transcoder, collector *metrics.Collector) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping processor")
	proc.Stop()
	startup.LogShutdownStepComplete("Processor stopped")

	startup.LogShutdownStep("Cleaning up transcoder")
	trans.Cleanup()
	startup.LogShutdownStepComplete("Transcoder cleanup complete")

	if collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}
	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownComplete()
}
