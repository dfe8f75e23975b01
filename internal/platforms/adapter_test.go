package platforms

import (
	"net/http"
	"testing"

	config "github.com/crosspostr/crosspostr/configs"
	"github.com/crosspostr/crosspostr/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   FailureKind
	}{
		{"unauthorized", http.StatusUnauthorized, FailureAuthExpired},
		{"forbidden", http.StatusForbidden, FailureAuthExpired},
		{"too many requests", http.StatusTooManyRequests, FailureRateLimited},
		{"internal server error", http.StatusInternalServerError, FailureTransientNetwork},
		{"bad gateway", http.StatusBadGateway, FailureTransientNetwork},
		{"bad request", http.StatusBadRequest, FailurePermanentReject},
		{"not found", http.StatusNotFound, FailurePermanentReject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStatus("telegram", tt.status, "boom")
			assert.Equal(t, tt.kind, err.Kind)
			assert.Equal(t, "telegram", err.Platform)
			assert.Contains(t, err.Error(), "boom")
		})
	}
}

func TestClassifyStatusDefaultMessage(t *testing.T) {
	err := classifyStatus("discord", http.StatusBadRequest, "")
	assert.Contains(t, err.Message, "400")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "hello", truncate("hello", 5))
	assert.Equal(t, "hell…", truncate("hello!", 5))

	// Rune boundaries, not bytes.
	got := truncate("ののののの", 3)
	assert.Equal(t, "のの…", got)
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry(config.Config{})

	for _, platform := range []string{
		models.PlatformBluesky,
		models.PlatformTelegram,
		models.PlatformDiscord,
		models.PlatformLinkedin,
		models.PlatformFacebook,
	} {
		a, ok := registry.Get(platform)
		require.True(t, ok, platform)
		assert.Equal(t, platform, a.Platform())
	}

	_, ok := registry.Get("myspace")
	assert.False(t, ok)

	// Only the OAuth platforms expose the authorization-code flow.
	_, ok = registry.OAuth(models.PlatformLinkedin)
	assert.True(t, ok)
	_, ok = registry.OAuth(models.PlatformFacebook)
	assert.True(t, ok)
	_, ok = registry.OAuth(models.PlatformBluesky)
	assert.False(t, ok)

	assert.Len(t, registry.Platforms(), 5)
}
