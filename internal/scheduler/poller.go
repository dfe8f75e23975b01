package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/crosspostr/crosspostr/internal/models"
	"github.com/crosspostr/crosspostr/internal/repository"
	"github.com/robfig/cron"
)

type Publisher interface {
	Publish(ctx context.Context, post *models.Post) error
}

// Poller claims due scheduled posts on a fixed interval and hands each to
// the publisher. One batch runs at a time; a new tick is skipped while the
// previous batch is still publishing. Single active instance only.
type Poller struct {
	pr        repository.PostRepository
	publisher Publisher
	batchSize int

	mu       sync.Mutex
	inFlight bool
}

func NewPoller(pr repository.PostRepository, publisher Publisher, batchSize int) *Poller {
	return &Poller{
		pr:        pr,
		publisher: publisher,
		batchSize: batchSize,
	}
}

// Start registers the tick on the given cron runner.
func (p *Poller) Start(c *cron.Cron, intervalSeconds int) error {
	return c.AddFunc(fmt.Sprintf("@every %ds", intervalSeconds), p.Tick)
}

func (p *Poller) Tick() {
	if !p.acquire() {
		return
	}
	defer p.release()

	ctx := context.Background()

	posts, err := p.pr.ClaimDue(ctx, time.Now(), p.batchSize)
	if err != nil {
		slog.Error("claiming due posts: " + err.Error())
		return
	}

	// Each post runs to completion, including its whole fan-out, before the
	// next one starts.
	for _, post := range posts {
		if err := p.publisher.Publish(ctx, post); err != nil {
			slog.Error(fmt.Sprintf("publishing post %d: %v", post.ID, err))
			if err := p.pr.Finalize(ctx, post.ID, models.PostStatusFailed, err.Error()); err != nil {
				slog.Error(err.Error())
			}
		}
	}
}

func (p *Poller) acquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight {
		return false
	}
	p.inFlight = true
	return true
}

func (p *Poller) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false
}
