package storage

import (
	"context"
	"fmt"
)

const (
	upsertUserSQL = `INSERT INTO users (id, chat_id, tz_offset, active, language)
    VALUES ($1, $2, $3, TRUE, $4)
    ON CONFLICT (id) DO UPDATE
    SET chat_id = EXCLUDED.chat_id;`

	getUserSQL = `SELECT id, chat_id, tz_offset, active, language, created_at
    FROM users WHERE id = $1;`
)

// Setting enumerates the user fields a settings update may touch. A closed
// set checked at compile time, instead of free-form key/value dispatch.
type Setting int

const (
	SettingTimezone Setting = iota + 1
	SettingActive
	SettingLanguage
)

// UpsertUser registers a user, keeping existing settings on re-register.
func (s *Store) UpsertUser(ctx context.Context, user User) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, upsertUserSQL,
		user.ID, user.ChatID, user.TZOffset, user.Language,
	); execErr != nil {
		return fmt.Errorf("upsert user: %w", execErr)
	}
	return nil
}

// GetUser loads one user.
func (s *Store) GetUser(ctx context.Context, userID int64) (User, error) {
	pool, err := s.getPool()
	if err != nil {
		return User{}, err
	}

	var user User
	if scanErr := pool.QueryRow(ctx, getUserSQL, userID).Scan(
		&user.ID, &user.ChatID, &user.TZOffset, &user.Active, &user.Language, &user.CreatedAt,
	); scanErr != nil {
		return User{}, fmt.Errorf("get user: %w", scanErr)
	}
	return user, nil
}

// UpdateUserSetting applies one validated settings change. Invalid values
// come back as *ValidationError for the caller to report; they are never
// process-fatal.
func (s *Store) UpdateUserSetting(ctx context.Context, userID int64, setting Setting, value any) error {
	var sql string
	var arg any

	switch setting {
	case SettingTimezone:
		offset, ok := value.(int)
		if !ok || offset < -12 || offset > 14 {
			return &ValidationError{Field: "timezone", Reason: "offset must be a whole number of hours between -12 and +14"}
		}
		sql, arg = updateUserTimezoneSQL, offset
	case SettingActive:
		active, ok := value.(bool)
		if !ok {
			return &ValidationError{Field: "active", Reason: "must be a boolean"}
		}
		sql, arg = updateUserActiveSQL, active
	case SettingLanguage:
		lang, ok := value.(string)
		if !ok || len(lang) < 2 || len(lang) > 8 {
			return &ValidationError{Field: "language", Reason: "must be a short language tag"}
		}
		sql, arg = updateUserLanguageSQL, lang
	default:
		return &ValidationError{Field: "setting", Reason: "unsupported setting"}
	}

	pool, err := s.getPool()
	if err != nil {
		return err
	}

	cmdTag, execErr := pool.Exec(ctx, sql, userID, arg)
	if execErr != nil {
		return fmt.Errorf("update user setting: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}
