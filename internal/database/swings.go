package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"swing-lab/internal/logging"
)

const swingColumns = `id, user_id, club, notes, status, source_path, object_key,
	poster_key, mime_type, size_bytes, duration_sec, width, height, compressed,
	error, recorded_at, created_at, updated_at`

// CreateSwing inserts a new swing row in pending state.
func (d *Database) CreateSwing(ctx context.Context, s *Swing) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_swing", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if s.Status == "" {
		s.Status = StatusPending
	}
	if s.RecordedAt.IsZero() {
		s.RecordedAt = time.Now()
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO swings (id, user_id, club, notes, status, source_path, mime_type, size_bytes, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Club, s.Notes, s.Status, s.SourcePath, s.MimeType, s.SizeBytes, s.RecordedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create swing: %w", err)
	}
	return nil
}

// GetSwing retrieves a swing by id, scoped to the owning user, with its
// score attached when one exists.
func (d *Database) GetSwing(ctx context.Context, userID, id string) (*Swing, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_swing", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx,
		"SELECT "+swingColumns+" FROM swings WHERE id = ? AND user_id = ?",
		id, userID,
	)

	s, scanErr := scanSwing(row)
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = ErrNotFound
			return nil, err
		}
		err = scanErr
		return nil, err
	}

	if err = d.attachScore(ctx, s); err != nil {
		return nil, err
	}

	return s, nil
}

// getSwingAnyUser retrieves a swing by id regardless of owner. Used by the
// processor, which operates on swings across users.
func (d *Database) getSwingAnyUser(ctx context.Context, id string) (*Swing, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx,
		"SELECT "+swingColumns+" FROM swings WHERE id = ?", id,
	)

	s, err := scanSwing(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// GetSwingForProcessing retrieves a swing by id without user scoping.
func (d *Database) GetSwingForProcessing(ctx context.Context, id string) (*Swing, error) {
	return d.getSwingAnyUser(ctx, id)
}

// ListSwings returns one page of a user's swing history, newest first.
// Page is 1-based. Scores are attached to each returned swing.
func (d *Database) ListSwings(ctx context.Context, userID string, page, pageSize int) (*SwingPage, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_swings", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int
	if err = d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM swings WHERE user_id = ?", userID,
	).Scan(&total); err != nil {
		return nil, err
	}

	rows, queryErr := d.db.QueryContext(ctx,
		"SELECT "+swingColumns+" FROM swings WHERE user_id = ? ORDER BY recorded_at DESC, id LIMIT ? OFFSET ?",
		userID, pageSize, (page-1)*pageSize,
	)
	if queryErr != nil {
		err = queryErr
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Error("failed to close swing rows: %v", closeErr)
		}
	}()

	items := make([]Swing, 0, pageSize)
	for rows.Next() {
		s, scanErr := scanSwing(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		items = append(items, *s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for i := range items {
		if err = d.attachScore(ctx, &items[i]); err != nil {
			return nil, err
		}
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	return &SwingPage{
		Items:      items,
		TotalItems: total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// UpdateSwingStatus moves a swing to the given status. errText is stored for
// failed swings and cleared otherwise.
func (d *Database) UpdateSwingStatus(ctx context.Context, id string, status SwingStatus, errText string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_swing_status", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if status != StatusFailed {
		errText = ""
	}

	result, execErr := d.db.ExecContext(ctx,
		"UPDATE swings SET status = ?, error = ?, updated_at = strftime('%s', 'now') WHERE id = ?",
		status, errText, id,
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

// SetSwingObject records the uploaded object and probe results, marks the
// swing ready and clears the local source path.
func (d *Database) SetSwingObject(ctx context.Context, id, objectKey, posterKey string, compressed bool, sizeBytes int64, durationSec float64, width, height int) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_swing_object", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	compressedInt := 0
	if compressed {
		compressedInt = 1
	}

	result, execErr := d.db.ExecContext(ctx, `
		UPDATE swings SET
			status = ?, object_key = ?, poster_key = ?, compressed = ?,
			size_bytes = ?, duration_sec = ?, width = ?, height = ?,
			source_path = '', error = '', updated_at = strftime('%s', 'now')
		WHERE id = ?`,
		StatusReady, objectKey, posterKey, compressedInt,
		sizeBytes, durationSec, width, height, id,
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

// DeleteSwing removes a swing (and via cascade its score) scoped to the
// owning user, returning the deleted row so callers can clean up the stored
// objects and any local file.
func (d *Database) DeleteSwing(ctx context.Context, userID, id string) (*Swing, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_swing", start, err) }()

	s, getErr := d.GetSwing(ctx, userID, id)
	if getErr != nil {
		err = getErr
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx,
		"DELETE FROM swings WHERE id = ? AND user_id = ?", id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to delete swing: %w", err)
	}
	return s, nil
}

// ClaimPendingSwings atomically moves up to limit pending swings to the
// processing state and returns them. Swings stuck in processing longer than
// staleAfter are reclaimed too (crash recovery).
func (d *Database) ClaimPendingSwings(ctx context.Context, limit int, staleAfter time.Duration) ([]Swing, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("claim_pending_swings", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if limit < 1 {
		limit = 1
	}
	staleCutoff := time.Now().Add(-staleAfter).Unix()

	rows, queryErr := d.db.QueryContext(ctx, `
		SELECT `+swingColumns+` FROM swings
		WHERE status = 'pending'
		   OR (status = 'processing' AND updated_at < ?)
		ORDER BY created_at
		LIMIT ?`,
		staleCutoff, limit,
	)
	if queryErr != nil {
		err = queryErr
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Error("failed to close claim rows: %v", closeErr)
		}
	}()

	var claimed []Swing
	for rows.Next() {
		s, scanErr := scanSwing(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		claimed = append(claimed, *s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for i := range claimed {
		if _, err = d.db.ExecContext(ctx,
			"UPDATE swings SET status = ?, updated_at = strftime('%s', 'now') WHERE id = ?",
			StatusProcessing, claimed[i].ID,
		); err != nil {
			return nil, err
		}
		claimed[i].Status = StatusProcessing
	}

	return claimed, nil
}

// RequeueFailedSwings moves failed swings back to pending and returns how
// many were re-queued. Used by the reprocess CLI.
func (d *Database) RequeueFailedSwings(ctx context.Context) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx,
		"UPDATE swings SET status = ?, error = '', updated_at = strftime('%s', 'now') WHERE status = ?",
		StatusPending, StatusFailed,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RequeueUnscoredSwings moves ready swings that never received a score back
// to pending so the processor rescores them from the stored object. Returns
// how many were re-queued. Used by the requeue CLI after an analyzer outage.
func (d *Database) RequeueUnscoredSwings(ctx context.Context) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, `
		UPDATE swings SET status = ?, updated_at = strftime('%s', 'now')
		WHERE status = ? AND object_key != ''
		  AND id NOT IN (SELECT swing_id FROM scores)`,
		StatusPending, StatusReady,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// UpsertScore stores (or replaces) the analyzer's score for a swing.
func (d *Database) UpsertScore(ctx context.Context, swingID string, score *Score) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_score", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	feedback, marshalErr := json.Marshal(score.Feedback)
	if marshalErr != nil {
		err = fmt.Errorf("failed to marshal feedback: %w", marshalErr)
		return err
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO scores (swing_id, overall, tempo, posture, rotation, feedback)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(swing_id) DO UPDATE SET
			overall = excluded.overall,
			tempo = excluded.tempo,
			posture = excluded.posture,
			rotation = excluded.rotation,
			feedback = excluded.feedback,
			received_at = strftime('%s', 'now')`,
		swingID, score.Overall, score.Tempo, score.Posture, score.Rotation, string(feedback),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert score: %w", err)
	}
	return nil
}

// attachScore loads the score for a swing if one exists.
// Caller must hold at least a read lock.
func (d *Database) attachScore(ctx context.Context, s *Swing) error {
	var score Score
	var feedback string
	var receivedAt int64

	err := d.db.QueryRowContext(ctx,
		"SELECT overall, tempo, posture, rotation, feedback, received_at FROM scores WHERE swing_id = ?",
		s.ID,
	).Scan(&score.Overall, &score.Tempo, &score.Posture, &score.Rotation, &feedback, &receivedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(feedback), &score.Feedback); err != nil {
		logging.Warn("corrupt feedback payload for swing %s: %v", s.ID, err)
		score.Feedback = nil
	}
	score.ReceivedAt = time.Unix(receivedAt, 0)
	s.Score = &score
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanSwing.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSwing(row scanner) (*Swing, error) {
	var s Swing
	var compressed int
	var recordedAt, createdAt, updatedAt int64

	err := row.Scan(
		&s.ID, &s.UserID, &s.Club, &s.Notes, &s.Status, &s.SourcePath,
		&s.ObjectKey, &s.PosterKey, &s.MimeType, &s.SizeBytes, &s.DurationSec,
		&s.Width, &s.Height, &compressed, &s.Error,
		&recordedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Compressed = compressed != 0
	s.RecordedAt = time.Unix(recordedAt, 0)
	s.CreatedAt = time.Unix(createdAt, 0)
	s.UpdatedAt = time.Unix(updatedAt, 0)
	return &s, nil
}
