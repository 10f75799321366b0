package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"swing-lab/internal/database"
)

func newTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "swings.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedSwing(t *testing.T, db *database.Database, id string, status database.SwingStatus) {
	t.Helper()
	swing := &database.Swing{
		ID:         id,
		UserID:     "user-1",
		Status:     database.StatusPending,
		SourcePath: "/uploads/" + id + ".mp4",
		MimeType:   "video/mp4",
		RecordedAt: time.Now(),
	}
	if err := db.CreateSwing(context.Background(), swing); err != nil {
		t.Fatalf("CreateSwing failed: %v", err)
	}
	if status != database.StatusPending {
		if err := db.UpdateSwingStatus(context.Background(), id, status, "boom"); err != nil {
			t.Fatalf("UpdateSwingStatus failed: %v", err)
		}
	}
}

func TestRequeueFailed(t *testing.T) {
	db := newTestDB(t)
	seedSwing(t, db, "failed-1", database.StatusFailed)
	seedSwing(t, db, "failed-2", database.StatusFailed)
	seedSwing(t, db, "ready-1", database.StatusReady)

	if !requeueFailed(context.Background(), db) {
		t.Fatal("requeueFailed returned false")
	}

	stats, err := db.CalculateStats(context.Background())
	if err != nil {
		t.Fatalf("CalculateStats failed: %v", err)
	}
	if stats.FailedSwings != 0 {
		t.Errorf("failed swings = %d, want 0", stats.FailedSwings)
	}
	if stats.PendingSwings != 2 {
		t.Errorf("pending swings = %d, want 2", stats.PendingSwings)
	}
}

func TestRequeueUnscored(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Two uploaded swings, one scored, one missed by the analyzer.
	for _, id := range []string{"scored-1", "unscored-1"} {
		seedSwing(t, db, id, database.StatusPending)
		key := "swings/user-1/" + id + ".mp4"
		if err := db.SetSwingObject(ctx, id, key, "", false, 100, 2.5, 720, 1280); err != nil {
			t.Fatalf("SetSwingObject failed: %v", err)
		}
	}
	if err := db.UpsertScore(ctx, "scored-1", &database.Score{Overall: 80}); err != nil {
		t.Fatalf("UpsertScore failed: %v", err)
	}

	if !requeueUnscored(ctx, db) {
		t.Fatal("requeueUnscored returned false")
	}

	unscored, err := db.GetSwing(ctx, "user-1", "unscored-1")
	if err != nil {
		t.Fatalf("GetSwing failed: %v", err)
	}
	if unscored.Status != database.StatusPending {
		t.Errorf("unscored swing status = %q, want pending", unscored.Status)
	}

	scored, err := db.GetSwing(ctx, "user-1", "scored-1")
	if err != nil {
		t.Fatalf("GetSwing failed: %v", err)
	}
	if scored.Status != database.StatusReady {
		t.Errorf("scored swing status = %q, want ready untouched", scored.Status)
	}
}

func TestRequeueFailedEmpty(t *testing.T) {
	db := newTestDB(t)
	if !requeueFailed(context.Background(), db) {
		t.Fatal("requeueFailed returned false on empty database")
	}
}

func TestShowStatus(t *testing.T) {
	db := newTestDB(t)
	seedSwing(t, db, "swing-1", database.StatusReady)

	if !showStatus(context.Background(), db) {
		t.Fatal("showStatus returned false")
	}
}
