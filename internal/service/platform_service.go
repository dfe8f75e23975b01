package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/crosspostr/crosspostr/internal/models"
	"github.com/crosspostr/crosspostr/internal/platforms"
	"github.com/crosspostr/crosspostr/internal/repository"
	"github.com/crosspostr/crosspostr/internal/vault"
)

type PlatformService interface {
	GetAuthURL(ctx context.Context, platform, state string) (string, error)
	HandleOAuthCallback(ctx context.Context, platform, code string, userID int64) error
	ConnectWithCredentials(ctx context.Context, platform string, rawCredentials []byte, userID int64) (int64, error)
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Disconnect(ctx context.Context, userID, accountID int64) error
}

type platformService struct {
	sa       repository.SocialAccountRepository
	vault    *vault.Vault
	registry *platforms.Registry
}

func NewPlatformService(sa repository.SocialAccountRepository, v *vault.Vault, registry *platforms.Registry) PlatformService {
	return &platformService{
		sa:       sa,
		vault:    v,
		registry: registry,
	}
}

func (s *platformService) GetAuthURL(ctx context.Context, platform, state string) (string, error) {
	adapter, ok := s.registry.OAuth(platform)
	if !ok {
		return "", fmt.Errorf("platform %s does not use an OAuth connect flow", platform)
	}
	return adapter.AuthCodeURL(state), nil
}

func (s *platformService) HandleOAuthCallback(ctx context.Context, platform, code string, userID int64) error {
	if code == "" {
		err := errors.New("code is empty")
		slog.Info(err.Error())
		return err
	}

	adapter, ok := s.registry.OAuth(platform)
	if !ok {
		return fmt.Errorf("platform %s does not use an OAuth connect flow", platform)
	}

	rawCredentials, err := adapter.ExchangeCode(ctx, code)
	if err != nil {
		return err
	}

	_, err = s.connect(ctx, adapter, rawCredentials, userID)
	return err
}

func (s *platformService) ConnectWithCredentials(ctx context.Context, platform string, rawCredentials []byte, userID int64) (int64, error) {
	adapter, ok := s.registry.Get(platform)
	if !ok {
		return 0, fmt.Errorf("unsupported platform %s", platform)
	}
	if _, isOAuth := s.registry.OAuth(platform); isOAuth {
		return 0, fmt.Errorf("platform %s is connected through its OAuth flow", platform)
	}

	return s.connect(ctx, adapter, rawCredentials, userID)
}

// connect validates the credentials against the live platform, encrypts the
// normalized blob and upserts the account; reconnecting a known
// platform-native identity updates the existing row.
func (s *platformService) connect(ctx context.Context, adapter platforms.Adapter, rawCredentials []byte, userID int64) (int64, error) {
	identity, err := adapter.Connect(ctx, rawCredentials)
	if err != nil {
		return 0, err
	}

	encrypted, err := s.vault.Encrypt(identity.Credentials)
	if err != nil {
		return 0, err
	}

	account := &models.SocialAccount{
		UserID:          userID,
		Platform:        adapter.Platform(),
		AccountID:       identity.AccountID,
		AccountName:     identity.Name,
		AccountUsername: identity.Username,
		Credentials:     encrypted,
	}
	if !identity.ExpiresAt.IsZero() {
		account.ExpiresAt = sql.NullTime{Time: identity.ExpiresAt, Valid: true}
	}

	id, err := s.sa.Upsert(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("error saving social account: %w", err)
	}

	return id, nil
}

func (s *platformService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	if userID == 0 {
		err := errors.New("user id is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	accounts, err := s.sa.ListInfoByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting social accounts: %w", err)
	}

	return accounts, nil
}

// Disconnect revokes platform-side access where possible, then soft-deletes
// the row so a later reconnect reactivates it.
func (s *platformService) Disconnect(ctx context.Context, userID, accountID int64) error {
	if accountID == 0 {
		err := errors.New("account id is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.sa.CheckActiveByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !isValid {
		err = errors.New("social account doesn't exist")
		slog.Info(err.Error())
		return err
	}

	account, err := s.sa.GetByID(ctx, accountID)
	if err != nil || account == nil {
		return fmt.Errorf("unable to get social account info")
	}

	if adapter, ok := s.registry.Get(account.Platform); ok {
		credentials, err := s.vault.Decrypt(account.Credentials)
		if err != nil {
			// An unreadable blob has nothing left to revoke.
			slog.Info(err.Error())
		} else if err := adapter.Disconnect(ctx, credentials); err != nil {
			slog.Info(fmt.Sprintf("revoking %s access for account %d: %v", account.Platform, accountID, err))
		}
	}

	if err := s.sa.Deactivate(ctx, accountID); err != nil {
		return fmt.Errorf("error removing account: %w", err)
	}

	return nil
}
