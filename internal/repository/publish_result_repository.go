package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/crosspostr/crosspostr/internal/models"
)

type PublishResultRepository interface {
	Create(ctx context.Context, pr *models.PublishResult) (int64, error)
	GetByUserID(ctx context.Context, userID int64, limit int) ([]*models.PublishResult, error)
	GetByPostID(ctx context.Context, postID int64) ([]*models.PublishResult, error)
}

type publishResultRepository struct {
	db *sql.DB
}

func NewPublishResultRepository(db *sql.DB) PublishResultRepository {
	return &publishResultRepository{db: db}
}

func (r *publishResultRepository) Create(ctx context.Context, pr *models.PublishResult) (int64, error) {
	query := `
		INSERT INTO publish_results (user_id, post_id, platform, account_id, account_name, content, origin, success, external_id, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		pr.UserID, pr.PostID, pr.Platform, pr.AccountID, pr.AccountName,
		pr.Content, pr.Origin, pr.Success, pr.ExternalID, pr.ErrorMessage,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *publishResultRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]*models.PublishResult, error) {
	query := `
		SELECT id, user_id, post_id, platform, account_id, account_name, content, origin, success, external_id, error_message, created_at
		FROM publish_results
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return scanPublishResults(rows)
}

func (r *publishResultRepository) GetByPostID(ctx context.Context, postID int64) ([]*models.PublishResult, error) {
	query := `
		SELECT id, user_id, post_id, platform, account_id, account_name, content, origin, success, external_id, error_message, created_at
		FROM publish_results
		WHERE post_id = $1
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return scanPublishResults(rows)
}

func scanPublishResults(rows *sql.Rows) ([]*models.PublishResult, error) {
	var results []*models.PublishResult
	for rows.Next() {
		var pr models.PublishResult
		err := rows.Scan(&pr.ID, &pr.UserID, &pr.PostID, &pr.Platform, &pr.AccountID,
			&pr.AccountName, &pr.Content, &pr.Origin, &pr.Success, &pr.ExternalID,
			&pr.ErrorMessage, &pr.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		results = append(results, &pr)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return results, nil
}
