package models

import "time"

// RateLimit is the persisted per-account counter row. Version backs the
// compare-and-swap update, so two overlapping dispatch runs cannot both
// record the same publish.
type RateLimit struct {
	AccountID         int64      `db:"account_id"`
	LastPublishAt     *time.Time `db:"last_publish_at"`
	HourCount         int        `db:"hour_count"`
	HourWindowResetAt time.Time  `db:"hour_window_reset_at"`
	DayCount          int        `db:"day_count"`
	DayResetAt        time.Time  `db:"day_reset_at"`
	Version           int64      `db:"version"`
}
