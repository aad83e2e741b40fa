package storage

import (
	"context"
	"fmt"

	"ratewatch/internal/schedule"
)

const (
	listActiveEntriesSQL = `SELECT
        e.user_id,
        u.chat_id,
        e.instrument,
        e.baseline,
        e.percent_delta,
        e.check_times,
        u.tz_offset,
        e.updated_at
    FROM tracking_entries e
    JOIN users u ON u.id = e.user_id
    WHERE u.active
      AND cardinality(e.check_times) > 0;`

	updateBaselineSQL = `UPDATE tracking_entries
    SET baseline = $3, updated_at = now()
    WHERE user_id = $1 AND instrument = $2;`

	seedEntrySQL = `INSERT INTO tracking_entries (user_id, instrument, baseline, percent_delta, check_times)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (user_id, instrument) DO NOTHING;`

	removeEntrySQL = `DELETE FROM tracking_entries WHERE user_id = $1 AND instrument = $2;`

	setPercentDeltaSQL = `UPDATE tracking_entries
    SET percent_delta = $3, updated_at = now()
    WHERE user_id = $1 AND instrument = $2;`

	setCheckTimesSQL = `UPDATE tracking_entries
    SET check_times = $3, updated_at = now()
    WHERE user_id = $1 AND instrument = $2;`

	getUserTZSQL = `SELECT tz_offset FROM users WHERE id = $1;`

	updateUserTimezoneSQL = `UPDATE users SET tz_offset = $2 WHERE id = $1;`
	updateUserActiveSQL   = `UPDATE users SET active = $2 WHERE id = $1;`
	updateUserLanguageSQL = `UPDATE users SET language = $2 WHERE id = $1;`
)

// Seeded percent threshold for default instruments: 1%.
const defaultPercentDelta = 0.01

// TrackingStore is the registry contract the alerting engine consumes.
type TrackingStore interface {
	EntriesDueAt(ctx context.Context, utcCheckTime string) ([]TrackingEntry, error)
	UpdateBaseline(ctx context.Context, userID int64, instrument string, newValue float64) error
}

// EntriesDueAt returns the tracking entries whose user-local check times,
// shifted by the user's timezone offset, land on the given UTC check time.
// Offsets are resolved here at query time, not stored pre-translated.
func (s *Store) EntriesDueAt(ctx context.Context, utcCheckTime string) ([]TrackingEntry, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listActiveEntriesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list active entries: %w", queryErr)
	}
	defer rows.Close()

	due := make([]TrackingEntry, 0)
	for rows.Next() {
		var entry TrackingEntry
		var baseline string
		if err := rows.Scan(
			&entry.UserID,
			&entry.ChatID,
			&entry.Instrument,
			&baseline,
			&entry.PercentDelta,
			&entry.CheckTimes,
			&entry.TZOffset,
			&entry.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan tracking entry: %w", err)
		}

		entry.Baseline, err = parseNumeric(baseline)
		if err != nil {
			return nil, fmt.Errorf("parse baseline: %w", err)
		}

		if schedule.DueAt(entry.CheckTimes, entry.TZOffset, utcCheckTime) {
			due = append(due, entry)
		}
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return due, nil
}

// UpdateBaseline replaces the stored baseline for one user/instrument
// pair. The single-row update is the serialization point that prevents
// lost updates within a round. Returns ErrEntryNotFound when the pair was
// removed mid-round.
func (s *Store) UpdateBaseline(ctx context.Context, userID int64, instrument string, newValue float64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	cmdTag, execErr := pool.Exec(ctx, updateBaselineSQL, userID, instrument, formatNumeric(newValue))
	if execErr != nil {
		return fmt.Errorf("update baseline: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// SeedDefaultEntries creates the default tracking entries for a new user,
// baselined at each instrument's configured fallback value. Existing
// entries are left untouched.
func (s *Store) SeedDefaultEntries(ctx context.Context, userID int64, defaults map[string]float64, checkTimes []string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for instrument, value := range defaults {
		if _, execErr := pool.Exec(ctx, seedEntrySQL,
			userID, instrument, formatNumeric(value), defaultPercentDelta, checkTimes,
		); execErr != nil {
			return fmt.Errorf("seed entry %s: %w", instrument, execErr)
		}
	}
	return nil
}

// RemoveEntry deletes a tracking entry, e.g. when a user stops tracking a
// non-default instrument.
func (s *Store) RemoveEntry(ctx context.Context, userID int64, instrument string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	cmdTag, execErr := pool.Exec(ctx, removeEntrySQL, userID, instrument)
	if execErr != nil {
		return fmt.Errorf("remove entry: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// SetPercentDelta updates a user's notification threshold for one
// instrument. The threshold is a fraction and must be positive.
func (s *Store) SetPercentDelta(ctx context.Context, userID int64, instrument string, pct float64) error {
	if pct <= 0 {
		return &ValidationError{Field: "percent_delta", Reason: "must be greater than zero"}
	}

	pool, err := s.getPool()
	if err != nil {
		return err
	}

	cmdTag, execErr := pool.Exec(ctx, setPercentDeltaSQL, userID, instrument, pct)
	if execErr != nil {
		return fmt.Errorf("set percent delta: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// SetCheckTimes replaces a user's local check times for one instrument.
// Each entry, shifted to UTC by the user's current offset, must land on
// the process-wide grid. Format problems are rejected before touching the
// pool; grid membership needs the stored offset and is checked after the
// lookup.
func (s *Store) SetCheckTimes(ctx context.Context, userID int64, instrument string, times []string, grid schedule.Grid) error {
	for _, local := range times {
		if _, convErr := schedule.LocalToUTC(local, 0); convErr != nil {
			return &ValidationError{Field: "check_times", Reason: fmt.Sprintf("%q is not a valid HH:MM time", local)}
		}
	}

	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var tzOffset int
	if scanErr := pool.QueryRow(ctx, getUserTZSQL, userID).Scan(&tzOffset); scanErr != nil {
		return fmt.Errorf("load user timezone: %w", scanErr)
	}

	if err := validateCheckTimes(times, tzOffset, grid); err != nil {
		return err
	}

	cmdTag, execErr := pool.Exec(ctx, setCheckTimesSQL, userID, instrument, times)
	if execErr != nil {
		return fmt.Errorf("set check times: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// validateCheckTimes checks that every local time, shifted to UTC by the
// user's offset, lands on the process-wide grid.
func validateCheckTimes(times []string, tzOffset int, grid schedule.Grid) error {
	for _, local := range times {
		utc, err := schedule.LocalToUTC(local, tzOffset)
		if err != nil {
			return &ValidationError{Field: "check_times", Reason: fmt.Sprintf("%q is not a valid HH:MM time", local)}
		}
		if !grid.Contains(utc) {
			return &ValidationError{Field: "check_times", Reason: fmt.Sprintf("%q is not on the check-time grid", local)}
		}
	}
	return nil
}
