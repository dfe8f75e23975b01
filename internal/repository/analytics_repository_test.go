package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementDailyMergesPlatformCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	day := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	truncated := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO daily_analytics`).
		WithArgs(int64(1), truncated).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT platform_counts FROM daily_analytics WHERE user_id = \$1 AND day = \$2 FOR UPDATE`).
		WithArgs(int64(1), truncated).
		WillReturnRows(sqlmock.NewRows([]string{"platform_counts"}).AddRow([]byte(`{"bluesky":2}`)))
	mock.ExpectExec(`UPDATE daily_analytics\s+SET total_attempts = total_attempts \+ \$3`).
		WithArgs(int64(1), truncated, 3, 2, 1, []byte(`{"bluesky":3,"telegram":2}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewAnalyticsRepository(db)
	err = repo.IncrementDaily(context.Background(), 1, day, 3, 2, 1, map[string]int{"bluesky": 1, "telegram": 2})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementDailyFirstBatchOfDay(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	day := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO daily_analytics`).
		WithArgs(int64(1), day).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT platform_counts FROM daily_analytics`).
		WithArgs(int64(1), day).
		WillReturnRows(sqlmock.NewRows([]string{"platform_counts"}).AddRow([]byte(`{}`)))
	mock.ExpectExec(`UPDATE daily_analytics`).
		WithArgs(int64(1), day, 1, 1, 0, []byte(`{"discord":1}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewAnalyticsRepository(db)
	err = repo.IncrementDaily(context.Background(), 1, day, 1, 1, 0, map[string]int{"discord": 1})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByUserID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "user_id", "day", "total_attempts", "successes", "failures", "platform_counts", "created_at", "updated_at"}).
		AddRow(int64(1), int64(1), since, 5, 4, 1, []byte(`{"bluesky":3,"discord":2}`), now, now)

	mock.ExpectQuery(`SELECT .+ FROM daily_analytics\s+WHERE user_id = \$1 AND day >= \$2`).
		WithArgs(int64(1), since).
		WillReturnRows(rows)

	repo := NewAnalyticsRepository(db)
	entries, err := repo.ListByUserID(context.Background(), 1, since)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, 5, entries[0].TotalAttempts)
	assert.Equal(t, map[string]int{"bluesky": 3, "discord": 2}, entries[0].PlatformCounts)
	require.NoError(t, mock.ExpectationsWereMet())
}
