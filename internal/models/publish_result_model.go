package models

import (
	"database/sql"
	"time"
)

type PublishResult struct {
	ID           int64         `db:"id" json:"id"`
	UserID       int64         `db:"user_id" json:"user_id"`
	PostID       sql.NullInt64 `db:"post_id" json:"post_id"`
	Platform     string        `db:"platform" json:"platform"`
	AccountID    int64         `db:"account_id" json:"account_id"`
	AccountName  string        `db:"account_name" json:"account_name"`
	Content      string        `db:"content" json:"content"`
	Origin       string        `db:"origin" json:"origin"`
	Success      bool          `db:"success" json:"success"`
	ExternalID   string        `db:"external_id" json:"external_id"`
	ErrorMessage string        `db:"error_message" json:"error_message"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

const (
	OriginScheduled = "scheduled"
	OriginInstant   = "instant"
)
