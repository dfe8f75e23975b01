package publisher

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/crosspostr/crosspostr/internal/models"
	"github.com/crosspostr/crosspostr/internal/repository"
)

// Recorder persists one PublishResult per fan-out leaf and rolls the batch
// into the owner's daily counters. Both writes are best-effort: a failed
// write here must never throw an already-dispatched publish into an error
// state.
type Recorder struct {
	results   repository.PublishResultRepository
	analytics repository.AnalyticsRepository
}

func NewRecorder(results repository.PublishResultRepository, analytics repository.AnalyticsRepository) *Recorder {
	return &Recorder{results: results, analytics: analytics}
}

func (r *Recorder) Record(ctx context.Context, post *models.Post, outcomes []AccountOutcome) {
	successes := 0
	platformCounts := make(map[string]int)

	for _, outcome := range outcomes {
		result := models.PublishResult{
			UserID:      post.UserID,
			PostID:      sql.NullInt64{Int64: post.ID, Valid: true},
			Platform:    outcome.Account.Platform,
			AccountID:   outcome.Account.ID,
			AccountName: outcome.Account.AccountName,
			Content:     post.Content,
			Origin:      models.OriginScheduled,
			Success:     outcome.Success,
			ExternalID:  outcome.ExternalID,
		}
		if outcome.Err != nil {
			result.ErrorMessage = outcome.Err.Message
		}

		if _, err := r.results.Create(ctx, &result); err != nil {
			slog.Error("saving publish result: " + err.Error())
		}

		platformCounts[outcome.Account.Platform]++
		if outcome.Success {
			successes++
		}
	}

	attempts := len(outcomes)
	failures := attempts - successes

	if err := r.analytics.IncrementDaily(ctx, post.UserID, time.Now().UTC(), attempts, successes, failures, platformCounts); err != nil {
		slog.Error("rolling daily analytics: " + err.Error())
	}
}
