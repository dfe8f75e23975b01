package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/crosspostr/crosspostr/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	ListByDateRange(ctx context.Context, userID int64, from, to time.Time) ([]*models.Post, error)
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error)
	Finalize(ctx context.Context, postID int64, status, errorMessage string) error
	Cancel(ctx context.Context, postID int64) (bool, error)
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, content, title, scheduled_time, timezone, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, post.UserID, post.Content, post.Title, post.ScheduledTime, post.Timezone, post.Status).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, post.UserID, post.Content, post.Title, post.ScheduledTime, post.Timezone, post.Status).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT id, user_id, content, title, scheduled_time, timezone, status, error_message, created_at, updated_at FROM posts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var post models.Post
	err := row.Scan(&post.ID, &post.UserID, &post.Content, &post.Title, &post.ScheduledTime, &post.Timezone, &post.Status, &post.ErrorMessage, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT id, user_id, content, title, scheduled_time, timezone, status, error_message, created_at, updated_at FROM posts WHERE user_id = $1 ORDER BY scheduled_time DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return scanPosts(rows)
}

func (r *postRepository) ListByDateRange(ctx context.Context, userID int64, from, to time.Time) ([]*models.Post, error) {
	query := `
		SELECT id, user_id, content, title, scheduled_time, timezone, status, error_message, created_at, updated_at
		FROM posts
		WHERE user_id = $1 AND scheduled_time >= $2 AND scheduled_time < $3
		ORDER BY scheduled_time ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, from, to)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return scanPosts(rows)
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := "SELECT 1 FROM posts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

// ClaimDue flips a bounded batch of due scheduled posts to publishing and
// returns them, oldest due first. The status transition inside the UPDATE is
// the only guard against a post being picked up twice; safe for a single
// scheduler instance only.
func (r *postRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error) {
	query := `
		UPDATE posts
		SET status = $1, updated_at = $2
		WHERE id IN (
			SELECT id FROM posts
			WHERE status = $3 AND scheduled_time <= $2
			ORDER BY scheduled_time ASC
			LIMIT $4
		)
		RETURNING id, user_id, content, title, scheduled_time, timezone, status, error_message, created_at, updated_at
	`
	rows, err := r.db.QueryContext(ctx, query, models.PostStatusPublishing, now, models.PostStatusScheduled, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return scanPosts(rows)
}

func (r *postRepository) Finalize(ctx context.Context, postID int64, status, errorMessage string) error {
	query := `
		UPDATE posts
		SET status = $1,
			error_message = $2,
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, status, errorMessage, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Cancel is only honored while the post is still scheduled; it reports
// whether the transition happened.
func (r *postRepository) Cancel(ctx context.Context, postID int64) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, models.PostStatusCancelled, time.Now(), postID, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	return affected == 1, nil
}

func scanPosts(rows *sql.Rows) ([]*models.Post, error) {
	var posts []*models.Post
	for rows.Next() {
		var post models.Post
		err := rows.Scan(&post.ID, &post.UserID, &post.Content, &post.Title, &post.ScheduledTime, &post.Timezone, &post.Status, &post.ErrorMessage, &post.CreatedAt, &post.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, &post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}
