package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/crosspostr/crosspostr/internal/models"
	"github.com/crosspostr/crosspostr/internal/platforms"
	"github.com/crosspostr/crosspostr/internal/repository"
	"github.com/crosspostr/crosspostr/internal/vault"
)

// AdapterResolver is the closed platform set; satisfied by
// platforms.Registry.
type AdapterResolver interface {
	Get(platform string) (platforms.Adapter, bool)
}

// AccountOutcome is what one fan-out leaf produced, success or failure.
type AccountOutcome struct {
	Account    *models.SocialAccount
	Success    bool
	ExternalID string
	Err        *platforms.PublishError
}

// Orchestrator fans one publishing-state post out to every target account
// and computes the aggregate terminal status.
type Orchestrator struct {
	pr       repository.PostRepository
	sa       repository.SelectedAccountRepository
	ac       repository.SocialAccountRepository
	ma       repository.MediaAssetRepository
	vault    *vault.Vault
	registry AdapterResolver
	recorder *Recorder

	concurrency int
}

func NewOrchestrator(
	pr repository.PostRepository,
	sa repository.SelectedAccountRepository,
	ac repository.SocialAccountRepository,
	ma repository.MediaAssetRepository,
	v *vault.Vault,
	registry AdapterResolver,
	recorder *Recorder) *Orchestrator {
	return &Orchestrator{
		pr:          pr,
		sa:          sa,
		ac:          ac,
		ma:          ma,
		vault:       v,
		registry:    registry,
		recorder:    recorder,
		concurrency: 10,
	}
}

// Publish runs one post's fan-out to completion. Adapter failures never
// escape the per-account loop; only repository errors bubble up.
func (o *Orchestrator) Publish(ctx context.Context, post *models.Post) error {
	selected, err := o.sa.ListByPostID(ctx, post.ID)
	if err != nil {
		return err
	}

	// Target ids that no longer resolve to an active account are omitted,
	// not fatal.
	var accounts []*models.SocialAccount
	for _, sel := range selected {
		account, err := o.ac.GetActiveByID(ctx, sel.AccountID)
		if err != nil {
			return err
		}
		if account == nil {
			slog.Info(fmt.Sprintf("post %d: target account %d no longer active, skipping", post.ID, sel.AccountID))
			continue
		}
		accounts = append(accounts, account)
	}

	if len(accounts) == 0 {
		return o.pr.Finalize(ctx, post.ID, models.PostStatusFailed, "no valid connected accounts")
	}

	assets, err := o.ma.ListByPostID(ctx, post.ID)
	if err != nil {
		return err
	}

	content := platforms.Content{
		Text:  post.Content,
		Title: post.Title,
	}
	for _, asset := range assets {
		content.Media = append(content.Media, platforms.Media{URL: asset.FileURL, MimeType: asset.FileType})
	}

	outcomes := make([]AccountOutcome, len(accounts))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, o.concurrency)

	for i, account := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(i int, account *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			outcomes[i] = o.publishToAccount(ctx, account, content)
		}(i, account)
	}

	wg.Wait()

	for _, outcome := range outcomes {
		if outcome.Err != nil && outcome.Err.Kind == platforms.FailureAuthExpired {
			if err := o.ac.MarkNeedsReconnect(ctx, outcome.Account.ID); err != nil {
				slog.Info(err.Error())
			}
		}
	}

	status, errorSummary := aggregate(outcomes)
	if err := o.pr.Finalize(ctx, post.ID, status, errorSummary); err != nil {
		return err
	}

	o.recorder.Record(ctx, post, outcomes)

	return nil
}

func (o *Orchestrator) publishToAccount(ctx context.Context, account *models.SocialAccount, content platforms.Content) AccountOutcome {
	outcome := AccountOutcome{Account: account}

	adapter, ok := o.registry.Get(account.Platform)
	if !ok {
		outcome.Err = &platforms.PublishError{
			Platform: account.Platform,
			Kind:     platforms.FailurePermanentReject,
			Message:  "unsupported platform",
		}
		return outcome
	}

	credentials, err := o.vault.Decrypt(account.Credentials)
	if err != nil {
		// A blob that no longer opens is equivalent to an expired token:
		// the user has to reconnect the account.
		kind := platforms.FailureTransientNetwork
		if errors.Is(err, vault.ErrDecrypt) {
			kind = platforms.FailureAuthExpired
		}
		outcome.Err = &platforms.PublishError{
			Platform: account.Platform,
			Kind:     kind,
			Message:  err.Error(),
		}
		return outcome
	}

	result, err := adapter.Publish(ctx, credentials, content)
	if err != nil {
		var publishErr *platforms.PublishError
		if !errors.As(err, &publishErr) {
			publishErr = &platforms.PublishError{
				Platform: account.Platform,
				Kind:     platforms.FailureTransientNetwork,
				Message:  err.Error(),
			}
		}
		outcome.Err = publishErr
		slog.Info(fmt.Sprintf("publish to %s account %d failed: %s", account.Platform, account.ID, publishErr.Message))
		return outcome
	}

	outcome.Success = true
	if result != nil {
		outcome.ExternalID = result.ExternalID
	}
	return outcome
}

// aggregate computes the user-visible terminal status: published if at least
// one destination succeeded, failed only when every destination failed. The
// error summary names every failing destination.
func aggregate(outcomes []AccountOutcome) (string, string) {
	var failures []string
	anySuccess := false

	for _, outcome := range outcomes {
		if outcome.Success {
			anySuccess = true
			continue
		}
		failures = append(failures, fmt.Sprintf("%s (%s): %s", outcome.Account.Platform, outcome.Account.AccountName, outcome.Err.Message))
	}

	summary := strings.Join(failures, "; ")
	if anySuccess {
		return models.PostStatusPublished, summary
	}
	return models.PostStatusFailed, summary
}
