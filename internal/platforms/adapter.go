package platforms

import (
	"context"
	"fmt"
	"net/http"
	"time"

	config "github.com/crosspostr/crosspostr/configs"
	"github.com/crosspostr/crosspostr/internal/models"
)

// FailureKind classifies why a platform call failed. The orchestrator flags
// the account for reconnection on AuthExpired; every other kind is just a
// failed result for this attempt.
type FailureKind string

const (
	FailureAuthExpired      FailureKind = "auth_expired"
	FailureRateLimited      FailureKind = "rate_limited"
	FailureTransientNetwork FailureKind = "transient_network"
	FailurePermanentReject  FailureKind = "permanent_reject"
)

type PublishError struct {
	Platform string
	Kind     FailureKind
	Message  string
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Platform, e.Message, e.Kind)
}

// classifyStatus maps a platform HTTP status into the failure taxonomy.
func classifyStatus(platform string, status int, message string) *PublishError {
	var kind FailureKind
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = FailureAuthExpired
	case status == http.StatusTooManyRequests:
		kind = FailureRateLimited
	case status >= http.StatusInternalServerError:
		kind = FailureTransientNetwork
	default:
		kind = FailurePermanentReject
	}
	if message == "" {
		message = fmt.Sprintf("platform returned status %d", status)
	}
	return &PublishError{Platform: platform, Kind: kind, Message: message}
}

// transportError covers request construction and network failures, including
// the per-call client timeout.
func transportError(platform string, err error) *PublishError {
	return &PublishError{Platform: platform, Kind: FailureTransientNetwork, Message: err.Error()}
}

func permanentError(platform, message string) *PublishError {
	return &PublishError{Platform: platform, Kind: FailurePermanentReject, Message: message}
}

type Media struct {
	URL      string
	MimeType string
}

// Content is one logical post, already resolved; each adapter shapes it to
// its platform's limits.
type Content struct {
	Text  string
	Title string
	Media []Media
}

// Identity describes the platform-native account a credential belongs to.
// Credentials holds the normalized secret blob to store (plaintext here;
// the caller encrypts through the vault).
type Identity struct {
	AccountID   string
	Name        string
	Username    string
	Credentials []byte
	ExpiresAt   time.Time
}

type Outcome struct {
	ExternalID string
}

// Adapter turns the engine's generic publish call into one platform's API
// protocol. Credentials arrive decrypted, per call.
type Adapter interface {
	Platform() string
	Connect(ctx context.Context, rawCredentials []byte) (*Identity, error)
	Publish(ctx context.Context, credentials []byte, content Content) (*Outcome, error)
	Disconnect(ctx context.Context, credentials []byte) error
}

// OAuthAdapter is implemented by platforms connected through an
// authorization-code flow rather than user-supplied credentials.
type OAuthAdapter interface {
	Adapter
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) ([]byte, error)
	RefreshCredentials(ctx context.Context, credentials []byte) ([]byte, time.Time, error)
}

// Registry is the closed set of supported platforms, built once at startup.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(cfg config.Config) *Registry {
	client := &http.Client{Timeout: 30 * time.Second}

	adapters := map[string]Adapter{
		models.PlatformBluesky:  NewBlueskyAdapter(client),
		models.PlatformTelegram: NewTelegramAdapter(client),
		models.PlatformDiscord:  NewDiscordAdapter(client),
		models.PlatformLinkedin: NewLinkedinAdapter(cfg, client),
		models.PlatformFacebook: NewFacebookAdapter(cfg, client),
	}

	return &Registry{adapters: adapters}
}

func (r *Registry) Get(platform string) (Adapter, bool) {
	a, ok := r.adapters[platform]
	return a, ok
}

func (r *Registry) OAuth(platform string) (OAuthAdapter, bool) {
	a, ok := r.adapters[platform]
	if !ok {
		return nil, false
	}
	oa, ok := a.(OAuthAdapter)
	return oa, ok
}

func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}

// truncate shortens text to max runes with an ellipsis, for platforms that
// accept shortened content instead of rejecting it.
func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
