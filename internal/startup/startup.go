package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"swing-lab/internal/logging"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	UploadDir       string
	CacheDir        string
	DatabaseDir     string
	StaticDir       string
	Port            string
	MetricsPort     string
	SweepInterval   time.Duration
	SignedURLTTL    time.Duration
	MaxUploadBytes  int64
	LogHealthChecks bool
	MetricsEnabled  bool

	// Auth
	JWTSecret []byte

	// Object storage
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	// Analyzer
	AnalyzerURL     string
	AnalyzerTimeout time.Duration

	// Derived paths
	DatabasePath string
	PosterDir    string

	// Feature flags
	CompressionEnabled bool
}

// LoadConfig loads and validates configuration from environment variables.
// A .env file in the working directory is honored when present.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		logging.Info("Loaded environment from .env file")
	}

	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	uploadDir := getEnv("UPLOAD_DIR", "/uploads")
	cacheDir := getEnv("CACHE_DIR", "/cache")
	databaseDir := getEnv("DATABASE_DIR", "/database")
	staticDir := getEnv("STATIC_DIR", "./static")
	port := getEnv("PORT", "8080")
	metricsPort := getEnv("METRICS_PORT", "9090")
	sweepIntervalStr := getEnv("PROCESS_INTERVAL", "30s")
	signedTTLStr := getEnv("SIGNED_URL_TTL", "15m")
	maxUploadMBStr := getEnv("MAX_UPLOAD_MB", "200")
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)

	jwtSecret := os.Getenv("JWT_SECRET")
	s3Bucket := os.Getenv("S3_BUCKET")
	s3Region := getEnv("S3_REGION", "us-east-1")
	s3Endpoint := os.Getenv("S3_ENDPOINT")
	s3AccessKey := os.Getenv("S3_ACCESS_KEY")
	s3SecretKey := os.Getenv("S3_SECRET_KEY")
	analyzerURL := os.Getenv("ANALYZER_URL")
	analyzerTimeoutStr := getEnv("ANALYZER_TIMEOUT", "60s")

	logging.Info("  UPLOAD_DIR:          %s", uploadDir)
	logging.Info("  CACHE_DIR:           %s", cacheDir)
	logging.Info("  DATABASE_DIR:        %s", databaseDir)
	logging.Info("  STATIC_DIR:          %s", staticDir)
	logging.Info("  PORT:                %s", port)
	logging.Info("  METRICS_PORT:        %s", metricsPort)
	logging.Info("  METRICS_ENABLED:     %v", metricsEnabled)
	logging.Info("  PROCESS_INTERVAL:    %s", sweepIntervalStr)
	logging.Info("  SIGNED_URL_TTL:      %s", signedTTLStr)
	logging.Info("  MAX_UPLOAD_MB:       %s", maxUploadMBStr)
	logging.Info("  S3_BUCKET:           %s", s3Bucket)
	logging.Info("  S3_REGION:           %s", s3Region)
	logging.Info("  S3_ENDPOINT:         %s", valueOrDefaultLabel(s3Endpoint, "(aws)"))
	logging.Info("  ANALYZER_URL:        %s", valueOrDefaultLabel(analyzerURL, "(disabled)"))
	logging.Info("  LOG_HEALTH_CHECKS:   %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if s3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required")
	}

	sweepInterval, err := time.ParseDuration(sweepIntervalStr)
	if err != nil {
		logging.Warn("  Invalid PROCESS_INTERVAL, using default: 30s")
		sweepInterval = 30 * time.Second
	}

	signedTTL, err := time.ParseDuration(signedTTLStr)
	if err != nil {
		logging.Warn("  Invalid SIGNED_URL_TTL, using default: 15m")
		signedTTL = 15 * time.Minute
	}

	analyzerTimeout, err := time.ParseDuration(analyzerTimeoutStr)
	if err != nil {
		logging.Warn("  Invalid ANALYZER_TIMEOUT, using default: 60s")
		analyzerTimeout = 60 * time.Second
	}

	maxUploadMB, err := strconv.ParseInt(maxUploadMBStr, 10, 64)
	if err != nil || maxUploadMB < 1 {
		logging.Warn("  Invalid MAX_UPLOAD_MB, using default: 200")
		maxUploadMB = 200
	}

	// Resolve paths
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	uploadDir, err = filepath.Abs(uploadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload directory path: %w", err)
	}
	logging.Info("  Upload directory (absolute): %s", uploadDir)

	cacheDir, err = filepath.Abs(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	logging.Info("  Cache directory (absolute): %s", cacheDir)

	databaseDir, err = filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", databaseDir)

	config := &Config{
		UploadDir:       uploadDir,
		CacheDir:        cacheDir,
		DatabaseDir:     databaseDir,
		StaticDir:       staticDir,
		Port:            port,
		MetricsPort:     metricsPort,
		SweepInterval:   sweepInterval,
		SignedURLTTL:    signedTTL,
		MaxUploadBytes:  maxUploadMB * 1 << 20,
		LogHealthChecks: logHealthChecks,
		MetricsEnabled:  metricsEnabled,
		JWTSecret:       []byte(jwtSecret),
		S3Bucket:        s3Bucket,
		S3Region:        s3Region,
		S3Endpoint:      s3Endpoint,
		S3AccessKey:     s3AccessKey,
		S3SecretKey:     s3SecretKey,
		AnalyzerURL:     analyzerURL,
		AnalyzerTimeout: analyzerTimeout,
		DatabasePath:    filepath.Join(databaseDir, "swings.db"),
		PosterDir:       filepath.Join(cacheDir, "posters"),
	}

	// Uploads and the database must be writable; the service is useless
	// without either.
	if err := ensureDirectory(uploadDir, "upload"); err != nil {
		return nil, fmt.Errorf("upload directory error: %w", err)
	}
	if err := testWriteAccess(uploadDir); err != nil {
		return nil, fmt.Errorf("upload directory is not writable: %w", err)
	}
	logging.Info("  [OK] Upload directory is writable")

	if err := ensureDirectory(databaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(databaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	// Cache holds compressed intermediates and posters; without it we
	// upload originals and skip posters.
	cacheOK := setupOptionalDir(cacheDir, "cache")
	if cacheOK {
		cacheOK = setupOptionalDir(config.PosterDir, "posters")
	}

	config.CompressionEnabled = cacheOK && checkFFmpeg() == nil

	// Summary
	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:    ENABLED (required)")
	logging.Info("    Compression: %s", enabledString(config.CompressionEnabled))
	logging.Info("    Analyzer:    %s", enabledString(analyzerURL != ""))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func valueOrDefaultLabel(value, label string) string {
	if value == "" {
		return label
	}
	return value
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	testFile := filepath.Join(path, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("    failed to remove test file %s: %v", testFile, err)
		// Still return true since write succeeded
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogTranscoderInit logs transcoder initialization status
func LogTranscoderInit(enabled bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("TRANSCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	if !enabled {
		logging.Warn("  Compression disabled (ffmpeg missing or cache not writable)")
		logging.Warn("  Swing videos will be uploaded unmodified, without posters")
		return
	}

	logging.Info("  [OK] FFmpeg is available")
}

// LogObjectStoreInit logs object store connection
func LogObjectStoreInit(bucket string, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("OBJECT STORE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Connected to bucket %s in %v", bucket, duration)
}

// LogProcessorInit logs processor initialization
func LogProcessorInit(interval time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("PROCESSOR INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Sweep interval: %v", interval)
	logging.Info("  Starting processor...")
}

// LogProcessorStarted logs successful processor start
func LogProcessorStarted() {
	logging.Info("  [OK] Processor started")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified (e.g., static file server)
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		// Group routes by prefix for cleaner output
		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			groupRoutes := groups[group]
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groupRoutes {
				methodPadded := fmt.Sprintf("%-6s", route.Method)
				logging.Debug("    %s %s", methodPadded, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return ""
	}

	first := parts[0]

	// Special handling for API routes
	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Local access:")
	logging.Info("    Application:   http://localhost:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://localhost:%s/metrics", config.MetricsPort)
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
   _____         _                __          __
  / ___/      __(_)___  ____ _   / /   ____ _/ /_
  \__ \ | /| / / / __ \/ __ '/  / /   / __ '/ __ \
 ___/ / |/ |/ / / / / / /_/ /  / /___/ /_/ / /_/ /
/____/|__/|__/_/_/ /_/\__, /  /_____/\__,_/_.___/
                     /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
	return nil
}

func checkFFmpeg() error {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("ffmpeg not found in PATH")
	}
	logging.Debug("  FFmpeg path: %s", path)

	if _, err := exec.LookPath("ffprobe"); err != nil {
		return fmt.Errorf("ffprobe not found in PATH")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg", "-version")
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("  FFmpeg version: %s", strings.TrimSpace(lines[0]))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
