package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"swing-lab/internal/database"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second
	// Default database directory path
	defaultDatabaseDir = "/database"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	// Get database directory from env or default
	databaseDir := os.Getenv("DATABASE_DIR")
	if databaseDir == "" {
		databaseDir = defaultDatabaseDir
	}
	dbPath := filepath.Join(databaseDir, "swings.db")

	db, err := database.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open database: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", databaseDir)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	switch command {
	case "failed":
		if !requeueFailed(ctx, db) {
			os.Exit(1)
		}
	case "unscored":
		if !requeueUnscored(ctx, db) {
			os.Exit(1)
		}
	case "status":
		if !showStatus(ctx, db) {
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "Unknown command")
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Swing Lab Processing Queue Management")
	fmt.Println("")
	fmt.Println("Usage: requeue <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  failed   - Re-queue all failed swings for processing")
	fmt.Println("  unscored - Re-queue ready swings without a score for analysis")
	fmt.Println("  status   - Show swing counts by processing status")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  DATABASE_DIR - Path to database directory (default: %s)\n", defaultDatabaseDir)
}

func requeueFailed(ctx context.Context, db *database.Database) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	count, err := db.RequeueFailedSwings(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to re-queue swings: %v\n", err)
		return false
	}

	if count == 0 {
		fmt.Println("No failed swings to re-queue.")
		return true
	}
	fmt.Printf("Re-queued %d failed swing(s).\n", count)
	fmt.Println("The running service will pick them up on its next sweep.")
	return true
}

func requeueUnscored(ctx context.Context, db *database.Database) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	count, err := db.RequeueUnscoredSwings(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to re-queue unscored swings: %v\n", err)
		return false
	}

	if count == 0 {
		fmt.Println("No unscored swings to re-queue.")
		return true
	}
	fmt.Printf("Re-queued %d unscored swing(s) for analysis.\n", count)
	fmt.Println("The running service will pick them up on its next sweep.")
	return true
}

func showStatus(ctx context.Context, db *database.Database) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stats, err := db.CalculateStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to read stats: %v\n", err)
		return false
	}

	fmt.Printf("Total swings:   %d\n", stats.TotalSwings)
	fmt.Printf("  Pending:      %d\n", stats.PendingSwings)
	fmt.Printf("  Ready:        %d\n", stats.ReadySwings)
	fmt.Printf("  Failed:       %d\n", stats.FailedSwings)
	fmt.Printf("Scores:         %d\n", stats.TotalScores)
	fmt.Printf("Drills:         %d\n", stats.TotalDrills)
	return true
}
