package models

import "time"

// DailyAnalytics counters only ever grow for a given (user, day); the
// recorder merges new batches in rather than recomputing.
type DailyAnalytics struct {
	ID             int64          `db:"id" json:"id"`
	UserID         int64          `db:"user_id" json:"user_id"`
	Day            time.Time      `db:"day" json:"day"`
	TotalAttempts  int            `db:"total_attempts" json:"total_attempts"`
	Successes      int            `db:"successes" json:"successes"`
	Failures       int            `db:"failures" json:"failures"`
	PlatformCounts map[string]int `db:"platform_counts" json:"platform_counts"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}
