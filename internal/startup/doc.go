// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig],
// with a .env file honored when present. The following environment
// variables are supported:
//
//   - UPLOAD_DIR: Path for incoming swing videos (default: /uploads)
//   - CACHE_DIR: Path for compressed intermediates and posters (default: /cache)
//   - DATABASE_DIR: Path to database directory (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - PROCESS_INTERVAL: Pending-swing sweep interval as Go duration (default: 30s)
//   - PROCESS_WORKERS: Override for the processing worker count
//   - SIGNED_URL_TTL: Lifetime of signed playback URLs (default: 15m)
//   - MAX_UPLOAD_MB: Upload size cap in megabytes (default: 200)
//   - JWT_SECRET: HS256 secret for bearer token validation (required)
//   - S3_BUCKET: Object storage bucket (required)
//   - S3_REGION: Object storage region (default: us-east-1)
//   - S3_ENDPOINT: Custom endpoint for S3-compatible stores (default: AWS)
//   - S3_ACCESS_KEY / S3_SECRET_KEY: Static credentials (default: SDK chain)
//   - ANALYZER_URL: Swing analysis service root (empty disables scoring)
//   - ANALYZER_TIMEOUT: Analysis request timeout (default: 60s)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// # Directory Setup
//
// The package validates and creates required directories:
//   - Upload directory: Required, must be writable
//   - Database directory: Required, must be writable
//   - Cache directory: Optional, enables compression and posters if writable
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
