package service

import (
	"context"
	"testing"
	"time"

	"github.com/crosspostr/crosspostr/internal/models"
	"github.com/crosspostr/crosspostr/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResultRepo struct {
	repository.PublishResultRepository

	lastLimit int
	results   []*models.PublishResult
}

func (f *fakeResultRepo) GetByUserID(ctx context.Context, userID int64, limit int) ([]*models.PublishResult, error) {
	f.lastLimit = limit
	return f.results, nil
}

func (f *fakeResultRepo) GetByPostID(ctx context.Context, postID int64) ([]*models.PublishResult, error) {
	return f.results, nil
}

type fakeAnalyticsRepo struct {
	repository.AnalyticsRepository

	lastSince time.Time
}

func (f *fakeAnalyticsRepo) ListByUserID(ctx context.Context, userID int64, since time.Time) ([]*models.DailyAnalytics, error) {
	f.lastSince = since
	return nil, nil
}

func TestFeedClampsLimit(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{"zero falls back to default", 0, defaultActivityLimit},
		{"negative falls back to default", -5, defaultActivityLimit},
		{"over cap falls back to default", 1000, defaultActivityLimit},
		{"in range is kept", 120, 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := &fakeResultRepo{}
			svc := NewActivityService(results, &fakeAnalyticsRepo{}, &fakePostRepo{})

			_, err := svc.Feed(context.Background(), 1, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, results.lastLimit)
		})
	}
}

func TestResultsForPostChecksOwnership(t *testing.T) {
	results := &fakeResultRepo{results: []*models.PublishResult{{Platform: models.PlatformBluesky}}}
	posts := &fakePostRepo{ownedPosts: map[int64]bool{7: true}}
	svc := NewActivityService(results, &fakeAnalyticsRepo{}, posts)

	got, err := svc.ResultsForPost(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = svc.ResultsForPost(context.Background(), 1, 8)
	require.ErrorIs(t, err, ErrValidation)
}

func TestAnalyticsClampsWindow(t *testing.T) {
	analytics := &fakeAnalyticsRepo{}
	svc := NewActivityService(&fakeResultRepo{}, analytics, &fakePostRepo{})

	_, err := svc.Analytics(context.Background(), 1, 9000)
	require.NoError(t, err)

	// Out-of-range windows collapse to the default 30 days.
	expected := time.Now().UTC().AddDate(0, 0, -30)
	assert.WithinDuration(t, expected, analytics.lastSince, time.Minute)
}
