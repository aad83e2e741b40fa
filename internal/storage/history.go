package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	insertSampleSQL = `INSERT INTO rate_samples (instrument, value, observed_at)
    VALUES ($1, $2, $3);`

	listSamplesBetweenSQL = `SELECT instrument, value, observed_at
    FROM rate_samples
    WHERE instrument = $1
      AND observed_at >= $2
      AND observed_at < $3
    ORDER BY observed_at;`

	listRecentSamplesSQL = `SELECT instrument, value, observed_at
    FROM rate_samples
    WHERE instrument = $1
    ORDER BY observed_at DESC
    LIMIT $2;`

	deleteSamplesBeforeSQL = `DELETE FROM rate_samples WHERE observed_at < $1;`

	insertAlertSQL = `INSERT INTO sent_alerts (user_id, instrument, old_value, new_value, pct_diff)
    VALUES ($1, $2, $3, $4, $5)
    RETURNING id, created_at;`

	listRecentAlertsSQL = `SELECT id, user_id, instrument, old_value, new_value, pct_diff, created_at
    FROM sent_alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteAlertsBeforeSQL = `DELETE FROM sent_alerts WHERE created_at < $1;`
)

// HistoryStore persists observed rates for export and charting.
type HistoryStore interface {
	RecordSample(ctx context.Context, sample RateSample) error
	ListSamplesBetween(ctx context.Context, instrument string, from, to time.Time) ([]RateSample, error)
	ListRecentSamples(ctx context.Context, instrument string, limit int) ([]RateSample, error)
}

// AlertStore audits delivered notifications. Listing and pruning stay on
// *Store; the fan-out engine only ever records.
type AlertStore interface {
	RecordAlert(ctx context.Context, alert SentAlert) (SentAlert, error)
}

// RecordSample persists one observation.
func (s *Store) RecordSample(ctx context.Context, sample RateSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	observedAt := sample.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}

	if _, execErr := pool.Exec(ctx, insertSampleSQL,
		sample.Instrument, formatNumeric(sample.Value), observedAt,
	); execErr != nil {
		return fmt.Errorf("record sample: %w", execErr)
	}
	return nil
}

// ListSamplesBetween lists one instrument's samples within a time window.
func (s *Store) ListSamplesBetween(ctx context.Context, instrument string, from, to time.Time) ([]RateSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, instrument, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// ListRecentSamples lists the most recent samples for one instrument.
func (s *Store) ListRecentSamples(ctx context.Context, instrument string, limit int) ([]RateSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, instrument, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// DeleteSamplesBefore prunes historical samples.
func (s *Store) DeleteSamplesBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteSamplesBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete samples before: %w", execErr)
	}
	return nil
}

// RecordAlert persists one delivered notification.
func (s *Store) RecordAlert(ctx context.Context, alert SentAlert) (SentAlert, error) {
	pool, err := s.getPool()
	if err != nil {
		return SentAlert{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.UserID,
		alert.Instrument,
		formatNumeric(alert.OldValue),
		formatNumeric(alert.NewValue),
		alert.PctDiff,
	)

	rec := alert
	if scanErr := row.Scan(&rec.ID, &rec.CreatedAt); scanErr != nil {
		return SentAlert{}, fmt.Errorf("record alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists the most recently delivered notifications.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]SentAlert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]SentAlert, 0, limit)
	for rows.Next() {
		var rec SentAlert
		var oldStr, newStr string
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.Instrument, &oldStr, &newStr, &rec.PctDiff, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}

		var convErr error
		if rec.OldValue, convErr = parseNumeric(oldStr); convErr != nil {
			return nil, fmt.Errorf("parse old value: %w", convErr)
		}
		if rec.NewValue, convErr = parseNumeric(newStr); convErr != nil {
			return nil, fmt.Errorf("parse new value: %w", convErr)
		}

		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore prunes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

func scanSamples(rows pgx.Rows) ([]RateSample, error) {
	samples := make([]RateSample, 0)
	for rows.Next() {
		var sample RateSample
		var valueStr string
		if err := rows.Scan(&sample.Instrument, &valueStr, &sample.ObservedAt); err != nil {
			return nil, err
		}

		value, err := parseNumeric(valueStr)
		if err != nil {
			return nil, fmt.Errorf("parse sample value: %w", err)
		}
		sample.Value = value

		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// NUMERIC columns round-trip as strings to keep full precision in the
// database regardless of float formatting.
func formatNumeric(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func parseNumeric(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}
