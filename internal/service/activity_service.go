package service

import (
	"context"
	"fmt"
	"time"

	"github.com/crosspostr/crosspostr/internal/models"
	"github.com/crosspostr/crosspostr/internal/repository"
)

const defaultActivityLimit = 50

// ActivityService is the read side of the recorder's output: the per-result
// activity feed and the daily counters.
type ActivityService interface {
	Feed(ctx context.Context, userID int64, limit int) ([]*models.PublishResult, error)
	ResultsForPost(ctx context.Context, userID, postID int64) ([]*models.PublishResult, error)
	Analytics(ctx context.Context, userID int64, days int) ([]*models.DailyAnalytics, error)
}

type activityService struct {
	results   repository.PublishResultRepository
	analytics repository.AnalyticsRepository
	pr        repository.PostRepository
}

func NewActivityService(results repository.PublishResultRepository, analytics repository.AnalyticsRepository, pr repository.PostRepository) ActivityService {
	return &activityService{
		results:   results,
		analytics: analytics,
		pr:        pr,
	}
}

func (s *activityService) Feed(ctx context.Context, userID int64, limit int) ([]*models.PublishResult, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultActivityLimit
	}

	feed, err := s.results.GetByUserID(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing activity: %w", err)
	}
	return feed, nil
}

func (s *activityService) ResultsForPost(ctx context.Context, userID, postID int64) ([]*models.PublishResult, error) {
	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !isValid {
		return nil, fmt.Errorf("%w: post doesn't exist", ErrValidation)
	}

	results, err := s.results.GetByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error listing post results: %w", err)
	}
	return results, nil
}

func (s *activityService) Analytics(ctx context.Context, userID int64, days int) ([]*models.DailyAnalytics, error) {
	if days <= 0 || days > 365 {
		days = 30
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	entries, err := s.analytics.ListByUserID(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("error listing analytics: %w", err)
	}
	return entries, nil
}
