package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/crosspostr/crosspostr/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discordCreds(t *testing.T, url string) []byte {
	t.Helper()
	creds, err := json.Marshal(transfer.DiscordCredentials{WebhookURL: url})
	require.NoError(t, err)
	return creds
}

func TestDiscordConnectRejectsPlainHTTP(t *testing.T) {
	adapter := NewDiscordAdapter(http.DefaultClient)

	_, err := adapter.Connect(context.Background(), discordCreds(t, "http://discord.com/api/webhooks/1/abc"))

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, FailurePermanentReject, pubErr.Kind)
}

func TestDiscordPublish(t *testing.T) {
	var got transfer.DiscordExecuteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "true", r.URL.Query().Get("wait"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(transfer.DiscordMessage{ID: "112233", ChannelID: "9"})
	}))
	defer srv.Close()

	adapter := NewDiscordAdapter(srv.Client())

	content := Content{
		Text:  "ship it",
		Title: "Release",
		Media: []Media{{URL: "https://cdn.example.com/a.png", MimeType: "image/png"}},
	}
	outcome, err := adapter.Publish(context.Background(), discordCreds(t, srv.URL+"/api/webhooks/1/abc"), content)
	require.NoError(t, err)
	assert.Equal(t, "112233", outcome.ExternalID)
	assert.Equal(t, "ship it", got.Content)
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "https://cdn.example.com/a.png", got.Embeds[0].Image.URL)
}

func TestDiscordPublishTruncatesContent(t *testing.T) {
	var got transfer.DiscordExecuteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(transfer.DiscordMessage{ID: "1"})
	}))
	defer srv.Close()

	adapter := NewDiscordAdapter(srv.Client())

	_, err := adapter.Publish(context.Background(), discordCreds(t, srv.URL), Content{Text: strings.Repeat("z", 3000)})
	require.NoError(t, err)
	assert.Equal(t, discordContentLimit, len([]rune(got.Content)))
}

func TestDiscordPublishRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(transfer.DiscordError{Message: "You are being rate limited.", Code: 0})
	}))
	defer srv.Close()

	adapter := NewDiscordAdapter(srv.Client())

	_, err := adapter.Publish(context.Background(), discordCreds(t, srv.URL), Content{Text: "hi"})

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, FailureRateLimited, pubErr.Kind)
}

func TestDiscordPublishWebhookGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Unknown Webhook","code":10015}`)
	}))
	defer srv.Close()

	adapter := NewDiscordAdapter(srv.Client())

	_, err := adapter.Publish(context.Background(), discordCreds(t, srv.URL), Content{Text: "hi"})

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, FailurePermanentReject, pubErr.Kind)
	assert.Contains(t, pubErr.Message, "Unknown Webhook")
}
