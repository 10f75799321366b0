package database

import (
	"context"
	"time"

	"swing-lab/internal/logging"
)

// ProgressSeries aggregates the user's scored swings per day over the last
// `days` days and returns the summary shown on the progress page. Days with
// no scored swings are omitted from the series.
func (d *Database) ProgressSeries(ctx context.Context, userID string, days int) (*ProgressSummary, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("progress_series", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if days < 1 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days).Unix()

	summary := &ProgressSummary{Series: make([]ProgressPoint, 0)}

	err = d.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN sc.swing_id IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(sc.overall), 0),
			COALESCE(MAX(sc.overall), 0)
		FROM swings s
		LEFT JOIN scores sc ON sc.swing_id = s.id
		WHERE s.user_id = ? AND s.recorded_at >= ?`,
		userID, cutoff,
	).Scan(&summary.TotalSwings, &summary.ScoredSwings, &summary.AvgScore, &summary.BestScore)
	if err != nil {
		return nil, err
	}

	rows, queryErr := d.db.QueryContext(ctx, `
		SELECT
			date(s.recorded_at, 'unixepoch') AS day,
			COUNT(*),
			AVG(sc.overall),
			MAX(sc.overall)
		FROM swings s
		JOIN scores sc ON sc.swing_id = s.id
		WHERE s.user_id = ? AND s.recorded_at >= ?
		GROUP BY day
		ORDER BY day`,
		userID, cutoff,
	)
	if queryErr != nil {
		err = queryErr
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logging.Error("failed to close progress rows: %v", closeErr)
		}
	}()

	for rows.Next() {
		var p ProgressPoint
		if err = rows.Scan(&p.Day, &p.Swings, &p.AvgScore, &p.BestScore); err != nil {
			return nil, err
		}
		summary.Series = append(summary.Series, p)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return summary, nil
}
