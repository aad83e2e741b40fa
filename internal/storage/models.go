package storage

import "time"

// TrackingEntry is one user's settings for one instrument. Baseline is the
// value last presented to that user, never a stale historic one; a fired
// notification replaces it with the new observation.
type TrackingEntry struct {
	UserID       int64
	ChatID       int64
	Instrument   string
	Baseline     float64
	PercentDelta float64
	CheckTimes   []string // HH:MM in user-local time
	TZOffset     int      // whole hours relative to UTC
	UpdatedAt    time.Time
}

// User holds the per-account settings the engine needs.
type User struct {
	ID        int64
	ChatID    int64
	TZOffset  int
	Active    bool
	Language  string
	CreatedAt time.Time
}

// RateSample is one persisted observation, kept for export and charts.
type RateSample struct {
	Instrument string
	Value      float64
	ObservedAt time.Time
}

// SentAlert audits one delivered notification.
type SentAlert struct {
	ID         int64
	UserID     int64
	Instrument string
	OldValue   float64
	NewValue   float64
	PctDiff    float64
	CreatedAt  time.Time
}
