package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/crosspostr/crosspostr/internal/models"
)

type SocialAccountRepository interface {
	Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.SocialAccount, error)
	GetActiveByID(ctx context.Context, id int64) (*models.SocialAccount, error)
	ListInfoByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	ListExpiring(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error)
	CheckActiveByUserID(ctx context.Context, accountID, userID int64) (bool, error)
	SetCredentials(ctx context.Context, accountID int64, credentials string, expiresAt sql.NullTime) error
	MarkNeedsReconnect(ctx context.Context, accountID int64) error
	Deactivate(ctx context.Context, id int64) error
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

// Upsert is keyed by (platform, platform-native account id) so repeated OAuth
// callbacks or reconnections update the existing row and reactivate it
// instead of creating a duplicate.
func (r *socialAccountRepository) Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	query := `
		INSERT INTO social_accounts(
			user_id,
			platform,
			account_id,
			account_name,
			account_username,
			credentials,
			credential_expires_at,
			active,
			needs_reconnect
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, FALSE)
		ON CONFLICT (platform, account_id) DO UPDATE SET
			account_name = EXCLUDED.account_name,
			account_username = EXCLUDED.account_username,
			credentials = EXCLUDED.credentials,
			credential_expires_at = EXCLUDED.credential_expires_at,
			active = TRUE,
			needs_reconnect = FALSE,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		sa.UserID,
		sa.Platform,
		sa.AccountID,
		sa.AccountName,
		sa.AccountUsername,
		sa.Credentials,
		sa.ExpiresAt,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *socialAccountRepository) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	query := `SELECT id, user_id, platform, account_id, account_name, account_username, credentials, credential_expires_at, active, needs_reconnect, created_at, updated_at FROM social_accounts WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetActiveByID resolves a fan-out target; disconnected accounts resolve to
// nil, not an error.
func (r *socialAccountRepository) GetActiveByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	query := `SELECT id, user_id, platform, account_id, account_name, account_username, credentials, credential_expires_at, active, needs_reconnect, created_at, updated_at FROM social_accounts WHERE id = $1 AND active = TRUE`
	return r.getOne(ctx, query, id)
}

func (r *socialAccountRepository) getOne(ctx context.Context, query string, id int64) (*models.SocialAccount, error) {
	row := r.db.QueryRowContext(ctx, query, id)

	var sa models.SocialAccount
	err := row.Scan(&sa.ID, &sa.UserID, &sa.Platform, &sa.AccountID, &sa.AccountName,
		&sa.AccountUsername, &sa.Credentials, &sa.ExpiresAt, &sa.Active,
		&sa.NeedsReconnect, &sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &sa, nil
}

func (r *socialAccountRepository) ListInfoByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	query := `SELECT id, platform, account_id, account_name, account_username, active, needs_reconnect FROM social_accounts WHERE user_id = $1 AND active = TRUE ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		var sa models.SocialAccount
		err := rows.Scan(&sa.ID, &sa.Platform, &sa.AccountID, &sa.AccountName, &sa.AccountUsername, &sa.Active, &sa.NeedsReconnect)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, &sa)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return accounts, nil
}

func (r *socialAccountRepository) ListExpiring(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	query := `
		SELECT id, user_id, platform, account_id, account_name, account_username, credentials, credential_expires_at, active, needs_reconnect, created_at, updated_at
		FROM social_accounts
		WHERE active = TRUE
		AND needs_reconnect = FALSE
		AND credential_expires_at IS NOT NULL
		AND credential_expires_at <= $1
	`
	rows, err := r.db.QueryContext(ctx, query, finalTime)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		var sa models.SocialAccount
		err := rows.Scan(&sa.ID, &sa.UserID, &sa.Platform, &sa.AccountID, &sa.AccountName,
			&sa.AccountUsername, &sa.Credentials, &sa.ExpiresAt, &sa.Active,
			&sa.NeedsReconnect, &sa.CreatedAt, &sa.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, &sa)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return accounts, nil
}

func (r *socialAccountRepository) CheckActiveByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	query := "SELECT 1 FROM social_accounts WHERE id = $1 AND user_id = $2 AND active = TRUE"

	var result int
	err := r.db.QueryRowContext(ctx, query, accountID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *socialAccountRepository) SetCredentials(ctx context.Context, accountID int64, credentials string, expiresAt sql.NullTime) error {
	query := `
		UPDATE social_accounts
		SET credentials = $2,
			credential_expires_at = $3,
			needs_reconnect = FALSE,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, accountID, credentials, expiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialAccountRepository) MarkNeedsReconnect(ctx context.Context, accountID int64) error {
	query := `
		UPDATE social_accounts
		SET needs_reconnect = TRUE,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, accountID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Deactivate soft-deletes; the row survives so a later reconnect with the
// same platform identity reactivates it via Upsert.
func (r *socialAccountRepository) Deactivate(ctx context.Context, id int64) error {
	query := `
		UPDATE social_accounts
		SET active = FALSE,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
