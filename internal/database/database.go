package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"swing-lab/internal/logging"
	"swing-lab/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when a row does not exist or belongs to another user.
var ErrNotFound = errors.New("not found")

// Database manages all database operations for the swing library.
type Database struct {
	db      *sql.DB
	dbPath  string
	mu      sync.RWMutex
	stats   LibraryStats
	statsMu sync.RWMutex
}

// New creates a new Database instance.
// dbPath must be the full path to the database FILE (e.g. "/database/swings.db")
// and the parent directory must already exist and be writable.
// Use startup.LoadConfig() to ensure proper directory validation before calling this.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnosePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// WAL mode and busy_timeout prevent "database is locked" errors when the
	// processor and handlers write concurrently.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	-- Swings: one row per recorded swing video
	CREATE TABLE IF NOT EXISTS swings (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		club TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		source_path TEXT NOT NULL DEFAULT '',
		object_key TEXT NOT NULL DEFAULT '',
		poster_key TEXT NOT NULL DEFAULT '',
		mime_type TEXT NOT NULL DEFAULT '',
		size_bytes INTEGER NOT NULL DEFAULT 0,
		duration_sec REAL NOT NULL DEFAULT 0,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		compressed INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		recorded_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_swings_user_recorded ON swings(user_id, recorded_at DESC);
	CREATE INDEX IF NOT EXISTS idx_swings_status ON swings(status);

	-- Scores: the analyzer's feedback payload, one per swing
	CREATE TABLE IF NOT EXISTS scores (
		swing_id TEXT PRIMARY KEY,
		overall REAL NOT NULL,
		tempo REAL NOT NULL DEFAULT 0,
		posture REAL NOT NULL DEFAULT 0,
		rotation REAL NOT NULL DEFAULT 0,
		feedback TEXT NOT NULL DEFAULT '[]',
		received_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (swing_id) REFERENCES swings(id) ON DELETE CASCADE
	);

	-- Practice drills
	CREATE TABLE IF NOT EXISTS drills (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		target_reps INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_drills_user ON drills(user_id);

	-- Drill completion, one row per (drill, day)
	CREATE TABLE IF NOT EXISTS drill_checks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		drill_id TEXT NOT NULL,
		day TEXT NOT NULL,
		completed_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (drill_id) REFERENCES drills(id) ON DELETE CASCADE,
		UNIQUE(drill_id, day)
	);

	CREATE INDEX IF NOT EXISTS idx_drill_checks_day ON drill_checks(day);

	-- Metadata table
	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	_, err = d.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// UpdateStats updates the cached library statistics.
func (d *Database) UpdateStats(stats LibraryStats) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.stats = stats
}

// GetStats returns the cached library statistics.
func (d *Database) GetStats() metrics.Stats {
	d.statsMu.RLock()
	defer d.statsMu.RUnlock()
	return metrics.Stats{
		TotalSwings:   d.stats.TotalSwings,
		PendingSwings: d.stats.PendingSwings,
		ReadySwings:   d.stats.ReadySwings,
		FailedSwings:  d.stats.FailedSwings,
		TotalScores:   d.stats.TotalScores,
		TotalDrills:   d.stats.TotalDrills,
	}
}

// GetLibraryStats returns the cached library statistics for API responses.
func (d *Database) GetLibraryStats() LibraryStats {
	d.statsMu.RLock()
	defer d.statsMu.RUnlock()
	return d.stats
}

// CalculateStats queries the current library counts.
func (d *Database) CalculateStats(ctx context.Context) (LibraryStats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("calculate_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats LibraryStats
	err = d.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status IN ('pending', 'processing') THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'ready' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM swings
	`).Scan(&stats.TotalSwings, &stats.PendingSwings, &stats.ReadySwings, &stats.FailedSwings)
	if err != nil {
		return stats, err
	}

	if err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scores").Scan(&stats.TotalScores); err != nil {
		return stats, err
	}

	err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM drills").Scan(&stats.TotalDrills)
	return stats, err
}

// Vacuum optimizes the database.
func (d *Database) Vacuum() error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "VACUUM")
	return err
}

// UpdateDBMetrics updates database connection metrics.
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// diagnosePermissions checks database directory and file permissions
func diagnosePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)
	logging.Debug("Database directory is writable")

	if dbInfo, err := os.Stat(dbPath); err == nil {
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", dbPath, dbInfo.Mode(), dbInfo.Size())
		if dbInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file is read-only! Mode: %v", dbInfo.Mode())
		}
	}

	// WAL and SHM files inherit permissions at checkpoint time; a read-only
	// WAL file causes write failures that look like corruption.
	for _, suffix := range []string{"-wal", "-shm"} {
		path := dbPath + suffix
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("%s file is read-only! Mode: %v - this will cause write failures", path, info.Mode())
			if chmodErr := os.Chmod(path, 0o600); chmodErr != nil {
				logging.Error("Failed to fix %s permissions: %v", path, chmodErr)
			} else {
				logging.Info("Fixed %s permissions", path)
			}
		}
	}

	return nil
}
