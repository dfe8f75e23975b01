package job

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	config "github.com/crosspostr/crosspostr/configs"
	"github.com/crosspostr/crosspostr/internal/models"
	"github.com/crosspostr/crosspostr/internal/platforms"
	"github.com/crosspostr/crosspostr/internal/repository"
	"github.com/crosspostr/crosspostr/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccountRepo struct {
	repository.SocialAccountRepository

	mu         sync.Mutex
	expiring   []*models.SocialAccount
	flaggedIDs []int64
	rotated    map[int64]string
}

func (f *fakeAccountRepo) ListExpiring(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	return f.expiring, nil
}

func (f *fakeAccountRepo) MarkNeedsReconnect(ctx context.Context, accountID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flaggedIDs = append(f.flaggedIDs, accountID)
	return nil
}

func (f *fakeAccountRepo) SetCredentials(ctx context.Context, accountID int64, credentials string, expiresAt sql.NullTime) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rotated == nil {
		f.rotated = make(map[int64]string)
	}
	f.rotated[accountID] = credentials
	return nil
}

func newJob(t *testing.T, repo *fakeAccountRepo) (*CredentialRefreshJob, *vault.Vault) {
	t.Helper()

	v, err := vault.New("refresh-job-test-secret")
	require.NoError(t, err)

	registry := platforms.NewRegistry(config.Config{})
	return NewCredentialRefreshJob(repo, v, registry), v
}

func TestRefreshFlagsNonOAuthPlatform(t *testing.T) {
	repo := &fakeAccountRepo{}
	job, v := newJob(t, repo)

	blob, err := v.Encrypt([]byte(`{"bot_token":"t","chat_id":"-100"}`))
	require.NoError(t, err)

	// A bot token with an expiry cannot be renewed by us.
	repo.expiring = []*models.SocialAccount{{
		ID:          1,
		Platform:    models.PlatformTelegram,
		Credentials: blob,
	}}

	job.RefreshCredentials()

	assert.Equal(t, []int64{1}, repo.flaggedIDs)
	assert.Empty(t, repo.rotated)
}

func TestRefreshFlagsAccountWithoutRefreshToken(t *testing.T) {
	repo := &fakeAccountRepo{}
	job, v := newJob(t, repo)

	blob, err := v.Encrypt([]byte(`{"access_token":"short-lived","refresh_token":""}`))
	require.NoError(t, err)

	repo.expiring = []*models.SocialAccount{{
		ID:          2,
		Platform:    models.PlatformLinkedin,
		Credentials: blob,
	}}

	job.RefreshCredentials()

	assert.Equal(t, []int64{2}, repo.flaggedIDs)
	assert.Empty(t, repo.rotated)
}

func TestRefreshFlagsUndecryptableBlob(t *testing.T) {
	repo := &fakeAccountRepo{}
	job, _ := newJob(t, repo)

	// Encrypted under a key that has since been rotated.
	other, err := vault.New("old-secret")
	require.NoError(t, err)
	blob, err := other.Encrypt([]byte(`{"access_token":"x"}`))
	require.NoError(t, err)

	repo.expiring = []*models.SocialAccount{{
		ID:          3,
		Platform:    models.PlatformLinkedin,
		Credentials: blob,
	}}

	job.RefreshCredentials()

	assert.Equal(t, []int64{3}, repo.flaggedIDs)
}

func TestRefreshNothingExpiring(t *testing.T) {
	repo := &fakeAccountRepo{}
	job, _ := newJob(t, repo)

	job.RefreshCredentials()

	assert.Empty(t, repo.flaggedIDs)
	assert.Empty(t, repo.rotated)
}
