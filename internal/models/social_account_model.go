package models

import (
	"database/sql"
	"time"
)

type SocialAccount struct {
	ID              int64        `db:"id" json:"id"`
	UserID          int64        `db:"user_id" json:"user_id"`
	Platform        string       `db:"platform" json:"platform"`
	AccountID       string       `db:"account_id" json:"account_id"`
	AccountName     string       `db:"account_name" json:"account_name"`
	AccountUsername string       `db:"account_username" json:"account_username"`
	Credentials     string       `db:"credentials" json:"-"`
	ExpiresAt       sql.NullTime `db:"credential_expires_at" json:"credential_expires_at"`
	Active          bool         `db:"active" json:"active"`
	NeedsReconnect  bool         `db:"needs_reconnect" json:"needs_reconnect"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

type SelectedAccount struct {
	PostID    int64     `db:"post_id" json:"post_id"`
	AccountID int64     `db:"account_id" json:"account_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	PlatformBluesky  = "bluesky"
	PlatformTelegram = "telegram"
	PlatformDiscord  = "discord"
	PlatformLinkedin = "linkedin"
	PlatformFacebook = "facebook"
)
