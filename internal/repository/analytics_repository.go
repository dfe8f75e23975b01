package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/crosspostr/crosspostr/internal/models"
)

type AnalyticsRepository interface {
	IncrementDaily(ctx context.Context, userID int64, day time.Time, attempts, successes, failures int, platformCounts map[string]int) error
	ListByUserID(ctx context.Context, userID int64, since time.Time) ([]*models.DailyAnalytics, error)
}

type analyticsRepository struct {
	db *sql.DB
}

func NewAnalyticsRepository(db *sql.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

// IncrementDaily adds a batch's totals into the (user, day) row and merges
// its per-platform counts into the stored map. Counters only ever grow, so
// repeating the call for the same batch day is safe.
func (r *analyticsRepository) IncrementDaily(ctx context.Context, userID int64, day time.Time, attempts, successes, failures int, platformCounts map[string]int) error {
	day = day.UTC().Truncate(24 * time.Hour)

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	insertQuery := `
		INSERT INTO daily_analytics (user_id, day, total_attempts, successes, failures, platform_counts)
		VALUES ($1, $2, 0, 0, 0, '{}')
		ON CONFLICT (user_id, day) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, insertQuery, userID, day); err != nil {
		slog.Info(err.Error())
		return err
	}

	var storedCounts []byte
	selectQuery := `SELECT platform_counts FROM daily_analytics WHERE user_id = $1 AND day = $2 FOR UPDATE`
	if err := tx.QueryRowContext(ctx, selectQuery, userID, day).Scan(&storedCounts); err != nil {
		slog.Info(err.Error())
		return err
	}

	merged := make(map[string]int)
	if len(storedCounts) > 0 {
		if err := json.Unmarshal(storedCounts, &merged); err != nil {
			slog.Info(err.Error())
			return err
		}
	}
	for platform, count := range platformCounts {
		merged[platform] += count
	}

	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	updateQuery := `
		UPDATE daily_analytics
		SET total_attempts = total_attempts + $3,
			successes = successes + $4,
			failures = failures + $5,
			platform_counts = $6,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1 AND day = $2
	`
	if _, err := tx.ExecContext(ctx, updateQuery, userID, day, attempts, successes, failures, mergedJSON); err != nil {
		slog.Info(err.Error())
		return err
	}

	if err := tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *analyticsRepository) ListByUserID(ctx context.Context, userID int64, since time.Time) ([]*models.DailyAnalytics, error) {
	query := `
		SELECT id, user_id, day, total_attempts, successes, failures, platform_counts, created_at, updated_at
		FROM daily_analytics
		WHERE user_id = $1 AND day >= $2
		ORDER BY day ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, since.UTC().Truncate(24*time.Hour))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var entries []*models.DailyAnalytics
	for rows.Next() {
		var da models.DailyAnalytics
		var counts []byte
		err := rows.Scan(&da.ID, &da.UserID, &da.Day, &da.TotalAttempts, &da.Successes, &da.Failures, &counts, &da.CreatedAt, &da.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		da.PlatformCounts = make(map[string]int)
		if len(counts) > 0 {
			if err := json.Unmarshal(counts, &da.PlatformCounts); err != nil {
				slog.Info(err.Error())
				return nil, err
			}
		}
		entries = append(entries, &da)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return entries, nil
}
