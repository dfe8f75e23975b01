package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/crosspostr/crosspostr/internal/models"
	"github.com/crosspostr/crosspostr/internal/platforms"
	"github.com/crosspostr/crosspostr/internal/repository"
	"github.com/crosspostr/crosspostr/internal/vault"
)

// CredentialRefreshJob renews OAuth credentials that expire within the next
// half hour. Platforms that cannot refresh get flagged for reconnection
// instead of failing silently at publish time.
type CredentialRefreshJob struct {
	sr       repository.SocialAccountRepository
	vault    *vault.Vault
	registry *platforms.Registry
}

func NewCredentialRefreshJob(sr repository.SocialAccountRepository, v *vault.Vault, registry *platforms.Registry) *CredentialRefreshJob {
	return &CredentialRefreshJob{
		sr:       sr,
		vault:    v,
		registry: registry,
	}
}

func (j *CredentialRefreshJob) RefreshCredentials() {
	ctx := context.Background()

	now := time.Now()
	accounts, err := j.sr.ListExpiring(ctx, now, now.Add(30*time.Minute))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := j.refreshAccount(ctx, acc); err != nil {
				slog.Info(fmt.Sprintf("unable to refresh %s credentials for account %d: %v", acc.Platform, acc.ID, err))

				var publishErr *platforms.PublishError
				if errors.As(err, &publishErr) && publishErr.Kind == platforms.FailureAuthExpired {
					if err := j.sr.MarkNeedsReconnect(ctx, acc.ID); err != nil {
						slog.Info(err.Error())
					}
				}
			}
		}(acc)
	}

	wg.Wait()
}

func (j *CredentialRefreshJob) refreshAccount(ctx context.Context, acc *models.SocialAccount) error {
	adapter, ok := j.registry.OAuth(acc.Platform)
	if !ok {
		// Credential platforms (bot tokens, webhooks, app passwords) have
		// nothing to refresh; an expiry on such an account means reconnect.
		return j.sr.MarkNeedsReconnect(ctx, acc.ID)
	}

	credentials, err := j.vault.Decrypt(acc.Credentials)
	if err != nil {
		if errors.Is(err, vault.ErrDecrypt) {
			return &platforms.PublishError{Platform: acc.Platform, Kind: platforms.FailureAuthExpired, Message: err.Error()}
		}
		return err
	}

	refreshed, expiresAt, err := adapter.RefreshCredentials(ctx, credentials)
	if err != nil {
		return err
	}

	encrypted, err := j.vault.Encrypt(refreshed)
	if err != nil {
		return err
	}

	var expiry sql.NullTime
	if !expiresAt.IsZero() {
		expiry = sql.NullTime{Time: expiresAt, Valid: true}
	}

	return j.sr.SetCredentials(ctx, acc.ID, encrypted, expiry)
}
