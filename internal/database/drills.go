package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"swing-lab/internal/logging"
	"swing-lab/internal/metrics"
)

// CreateDrill inserts a new practice drill for a user.
func (d *Database) CreateDrill(ctx context.Context, drill *Drill) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_drill", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx,
		"INSERT INTO drills (id, user_id, title, category, target_reps) VALUES (?, ?, ?, ?, ?)",
		drill.ID, drill.UserID, drill.Title, drill.Category, drill.TargetReps,
	)
	if err != nil {
		return fmt.Errorf("failed to create drill: %w", err)
	}
	return nil
}

// ListDrills returns all of a user's drills, oldest first.
func (d *Database) ListDrills(ctx context.Context, userID string) ([]Drill, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_drills", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, queryErr := d.db.QueryContext(ctx,
		"SELECT id, user_id, title, category, target_reps, created_at FROM drills WHERE user_id = ? ORDER BY created_at, id",
		userID,
	)
	if queryErr != nil {
		err = queryErr
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Error("failed to close drill rows: %v", closeErr)
		}
	}()

	drills := make([]Drill, 0)
	for rows.Next() {
		var drill Drill
		var createdAt int64
		if err = rows.Scan(&drill.ID, &drill.UserID, &drill.Title, &drill.Category, &drill.TargetReps, &createdAt); err != nil {
			return nil, err
		}
		drill.CreatedAt = time.Unix(createdAt, 0)
		drills = append(drills, drill)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return drills, nil
}

// DeleteDrill removes a drill and its check history, scoped to the owning user.
func (d *Database) DeleteDrill(ctx context.Context, userID, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_drill", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, execErr := d.db.ExecContext(ctx,
		"DELETE FROM drills WHERE id = ? AND user_id = ?", id, userID,
	)
	if execErr != nil {
		err = execErr
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		err = ErrNotFound
		return err
	}
	return nil
}

// CheckDrill marks a drill complete for a day (YYYY-MM-DD). Checking an
// already-checked drill is a no-op, so retries are safe.
func (d *Database) CheckDrill(ctx context.Context, userID, drillID, day string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("check_drill", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err = d.requireDrill(ctx, userID, drillID); err != nil {
		return err
	}

	_, err = d.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO drill_checks (drill_id, day) VALUES (?, ?)",
		drillID, day,
	)
	if err != nil {
		return fmt.Errorf("failed to check drill: %w", err)
	}
	metrics.DrillChecksTotal.WithLabelValues("check").Inc()
	return nil
}

// UncheckDrill clears a drill's completion for a day. Unchecking a drill
// that was never checked is a no-op.
func (d *Database) UncheckDrill(ctx context.Context, userID, drillID, day string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("uncheck_drill", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err = d.requireDrill(ctx, userID, drillID); err != nil {
		return err
	}

	_, err = d.db.ExecContext(ctx,
		"DELETE FROM drill_checks WHERE drill_id = ? AND day = ?",
		drillID, day,
	)
	if err != nil {
		return fmt.Errorf("failed to uncheck drill: %w", err)
	}
	metrics.DrillChecksTotal.WithLabelValues("uncheck").Inc()
	return nil
}

// GetChecklist returns every drill for the user joined with its completion
// state for the given day (YYYY-MM-DD).
func (d *Database) GetChecklist(ctx context.Context, userID, day string) ([]ChecklistItem, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_checklist", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, queryErr := d.db.QueryContext(ctx, `
		SELECT d.id, d.user_id, d.title, d.category, d.target_reps, d.created_at,
			c.completed_at
		FROM drills d
		LEFT JOIN drill_checks c ON c.drill_id = d.id AND c.day = ?
		WHERE d.user_id = ?
		ORDER BY d.created_at, d.id`,
		day, userID,
	)
	if queryErr != nil {
		err = queryErr
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Error("failed to close checklist rows: %v", closeErr)
		}
	}()

	items := make([]ChecklistItem, 0)
	for rows.Next() {
		var item ChecklistItem
		var createdAt int64
		var completedAt sql.NullInt64
		if err = rows.Scan(&item.ID, &item.UserID, &item.Title, &item.Category, &item.TargetReps, &createdAt, &completedAt); err != nil {
			return nil, err
		}
		item.CreatedAt = time.Unix(createdAt, 0)
		if completedAt.Valid {
			item.Completed = true
			ts := time.Unix(completedAt.Int64, 0)
			item.CompletedAt = &ts
		}
		items = append(items, item)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return items, nil
}

// requireDrill verifies a drill exists and belongs to the user.
// Caller must hold a lock.
func (d *Database) requireDrill(ctx context.Context, userID, drillID string) error {
	var one int
	err := d.db.QueryRowContext(ctx,
		"SELECT 1 FROM drills WHERE id = ? AND user_id = ?", drillID, userID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
