package platforms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/crosspostr/crosspostr/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBlueskyServer(t *testing.T, sessionCalls *int64, failCreateRecord int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/com.atproto.server.createSession":
			atomic.AddInt64(sessionCalls, 1)
			var req transfer.BlueskySessionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req.Password != "app-pass" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(transfer.BlueskyError{Error: "AuthenticationRequired", Message: "Invalid identifier or password"})
				return
			}
			json.NewEncoder(w).Encode(transfer.BlueskySessionResponse{
				AccessJwt: "jwt-1",
				Handle:    "alice.bsky.social",
				Did:       "did:plc:abc123",
			})
		case "/com.atproto.repo.createRecord":
			if r.Header.Get("Authorization") != "Bearer jwt-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if failCreateRecord != 0 {
				w.WriteHeader(failCreateRecord)
				json.NewEncoder(w).Encode(transfer.BlueskyError{Message: "upstream"})
				return
			}
			var req transfer.BlueskyCreateRecordRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "did:plc:abc123", req.Repo)
			assert.Equal(t, "app.bsky.feed.post", req.Collection)
			json.NewEncoder(w).Encode(transfer.BlueskyCreateRecordResponse{URI: "at://did:plc:abc123/app.bsky.feed.post/3k44", Cid: "bafy"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func blueskyCreds(t *testing.T) []byte {
	t.Helper()
	creds, err := json.Marshal(transfer.BlueskyCredentials{Identifier: "alice.bsky.social", AppPassword: "app-pass"})
	require.NoError(t, err)
	return creds
}

func TestBlueskyConnect(t *testing.T) {
	var sessionCalls int64
	srv := newBlueskyServer(t, &sessionCalls, 0)
	defer srv.Close()

	adapter := NewBlueskyAdapter(srv.Client())
	adapter.baseURL = srv.URL

	identity, err := adapter.Connect(context.Background(), blueskyCreds(t))
	require.NoError(t, err)
	assert.Equal(t, "did:plc:abc123", identity.AccountID)
	assert.Equal(t, "alice.bsky.social", identity.Username)
	assert.NotEmpty(t, identity.Credentials)
}

func TestBlueskyConnectBadPassword(t *testing.T) {
	var sessionCalls int64
	srv := newBlueskyServer(t, &sessionCalls, 0)
	defer srv.Close()

	adapter := NewBlueskyAdapter(srv.Client())
	adapter.baseURL = srv.URL

	creds, _ := json.Marshal(transfer.BlueskyCredentials{Identifier: "alice.bsky.social", AppPassword: "wrong"})
	_, err := adapter.Connect(context.Background(), creds)

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, FailureAuthExpired, pubErr.Kind)
}

func TestBlueskyPublish(t *testing.T) {
	var sessionCalls int64
	srv := newBlueskyServer(t, &sessionCalls, 0)
	defer srv.Close()

	adapter := NewBlueskyAdapter(srv.Client())
	adapter.baseURL = srv.URL

	outcome, err := adapter.Publish(context.Background(), blueskyCreds(t), Content{Text: "hello fediverse"})
	require.NoError(t, err)
	assert.Equal(t, "at://did:plc:abc123/app.bsky.feed.post/3k44", outcome.ExternalID)

	// Second publish reuses the cached session instead of logging in again.
	_, err = adapter.Publish(context.Background(), blueskyCreds(t), Content{Text: "hello again"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&sessionCalls))
}

func TestBlueskyPublishRejectsOversizedPost(t *testing.T) {
	var sessionCalls int64
	srv := newBlueskyServer(t, &sessionCalls, 0)
	defer srv.Close()

	adapter := NewBlueskyAdapter(srv.Client())
	adapter.baseURL = srv.URL

	_, err := adapter.Publish(context.Background(), blueskyCreds(t), Content{Text: strings.Repeat("x", 4096)})

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, FailurePermanentReject, pubErr.Kind)
	// The limit check happens before any network call.
	assert.Equal(t, int64(0), atomic.LoadInt64(&sessionCalls))
}

func TestBlueskyPublishExactLimit(t *testing.T) {
	var sessionCalls int64
	srv := newBlueskyServer(t, &sessionCalls, 0)
	defer srv.Close()

	adapter := NewBlueskyAdapter(srv.Client())
	adapter.baseURL = srv.URL

	_, err := adapter.Publish(context.Background(), blueskyCreds(t), Content{Text: strings.Repeat("x", 300)})
	assert.NoError(t, err)
}

func TestBlueskyPublishEvictsSessionOnUnauthorized(t *testing.T) {
	var sessionCalls int64
	srv := newBlueskyServer(t, &sessionCalls, http.StatusUnauthorized)
	defer srv.Close()

	adapter := NewBlueskyAdapter(srv.Client())
	adapter.baseURL = srv.URL

	_, err := adapter.Publish(context.Background(), blueskyCreds(t), Content{Text: "hi"})

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, FailureAuthExpired, pubErr.Kind)

	adapter.mu.Lock()
	_, cached := adapter.sessions["alice.bsky.social"]
	adapter.mu.Unlock()
	assert.False(t, cached)
}

func TestBlueskyMalformedCredentials(t *testing.T) {
	adapter := NewBlueskyAdapter(http.DefaultClient)

	_, err := adapter.Publish(context.Background(), []byte("not json"), Content{Text: "hi"})

	var pubErr *PublishError
	require.True(t, errors.As(err, &pubErr))
	assert.Equal(t, FailurePermanentReject, pubErr.Kind)
}

func TestBlueskySessionCacheBounded(t *testing.T) {
	adapter := NewBlueskyAdapter(http.DefaultClient)

	for i := 0; i < blueskyMaxSessions+10; i++ {
		adapter.store(strings.Repeat("a", i+1), &blueskySession{accessJwt: "jwt"})
	}

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	assert.LessOrEqual(t, len(adapter.sessions), blueskyMaxSessions)
}
