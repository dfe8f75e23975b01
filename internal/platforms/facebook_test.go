package platforms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	config "github.com/crosspostr/crosspostr/configs"
	"github.com/crosspostr/crosspostr/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func facebookCreds(t *testing.T, pageID string) []byte {
	t.Helper()
	creds, err := json.Marshal(transfer.FacebookCredentials{
		PageID:      pageID,
		AccessToken: "fb-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	return creds
}

func TestFacebookConnectStoresFirstPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me/accounts", r.URL.Path)
		require.Equal(t, "fb-token", r.URL.Query().Get("access_token"))
		json.NewEncoder(w).Encode(transfer.FacebookPagesResponse{Data: []transfer.FacebookPage{
			{ID: "page-1", Name: "Crosspostr News", AccessToken: "page-token"},
			{ID: "page-2", Name: "Other", AccessToken: "other-token"},
		}})
	}))
	defer srv.Close()

	adapter := NewFacebookAdapter(config.Config{}, srv.Client())
	adapter.baseURL = srv.URL

	identity, err := adapter.Connect(context.Background(), facebookCreds(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "page-1", identity.AccountID)
	assert.Equal(t, "Crosspostr News", identity.Name)

	// The stored blob carries the page token, not the user token.
	var stored transfer.FacebookCredentials
	require.NoError(t, json.Unmarshal(identity.Credentials, &stored))
	assert.Equal(t, "page-token", stored.AccessToken)
	assert.Equal(t, "page-1", stored.PageID)
}

func TestFacebookConnectNoPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(transfer.FacebookPagesResponse{})
	}))
	defer srv.Close()

	adapter := NewFacebookAdapter(config.Config{}, srv.Client())
	adapter.baseURL = srv.URL

	_, err := adapter.Connect(context.Background(), facebookCreds(t, ""))

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, FailurePermanentReject, pubErr.Kind)
}

func TestFacebookPublishText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/page-1/feed", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "fb-token", r.PostForm.Get("access_token"))
		assert.Equal(t, "hello fans", r.PostForm.Get("message"))
		json.NewEncoder(w).Encode(transfer.FacebookPublishResponse{ID: "page-1_999"})
	}))
	defer srv.Close()

	adapter := NewFacebookAdapter(config.Config{}, srv.Client())
	adapter.baseURL = srv.URL

	outcome, err := adapter.Publish(context.Background(), facebookCreds(t, "page-1"), Content{Text: "hello fans"})
	require.NoError(t, err)
	assert.Equal(t, "page-1_999", outcome.ExternalID)
}

func TestFacebookPublishPhoto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/page-1/photos", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "https://cdn.example.com/a.jpg", r.PostForm.Get("url"))
		assert.Equal(t, "look at this", r.PostForm.Get("caption"))
		json.NewEncoder(w).Encode(transfer.FacebookPublishResponse{ID: "photo-5", PostID: "page-1_1000"})
	}))
	defer srv.Close()

	adapter := NewFacebookAdapter(config.Config{}, srv.Client())
	adapter.baseURL = srv.URL

	content := Content{
		Text:  "look at this",
		Media: []Media{{URL: "https://cdn.example.com/a.jpg", MimeType: "image/jpeg"}},
	}
	outcome, err := adapter.Publish(context.Background(), facebookCreds(t, "page-1"), content)
	require.NoError(t, err)
	assert.Equal(t, "page-1_1000", outcome.ExternalID)
}

func TestFacebookPublishWithoutPage(t *testing.T) {
	adapter := NewFacebookAdapter(config.Config{}, http.DefaultClient)

	_, err := adapter.Publish(context.Background(), facebookCreds(t, ""), Content{Text: "hi"})

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, FailurePermanentReject, pubErr.Kind)
}

func TestFacebookRefreshCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/access_token", r.URL.Path)
		assert.Equal(t, "fb_exchange_token", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "fb-token", r.URL.Query().Get("fb_exchange_token"))
		json.NewEncoder(w).Encode(map[string]any{"access_token": "long-lived", "expires_in": 5184000})
	}))
	defer srv.Close()

	adapter := NewFacebookAdapter(config.Config{}, srv.Client())
	adapter.baseURL = srv.URL

	refreshed, expiry, err := adapter.RefreshCredentials(context.Background(), facebookCreds(t, "page-1"))
	require.NoError(t, err)
	assert.True(t, expiry.After(time.Now().Add(24*time.Hour)))

	var creds transfer.FacebookCredentials
	require.NoError(t, json.Unmarshal(refreshed, &creds))
	assert.Equal(t, "long-lived", creds.AccessToken)
	assert.Equal(t, "page-1", creds.PageID)
}

func TestFacebookPublishExpiredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(transfer.FacebookErrorResponse{Error: transfer.FacebookError{
			Message: "Error validating access token", Type: "OAuthException", Code: 190,
		}})
	}))
	defer srv.Close()

	adapter := NewFacebookAdapter(config.Config{}, srv.Client())
	adapter.baseURL = srv.URL

	_, err := adapter.Publish(context.Background(), facebookCreds(t, "page-1"), Content{Text: "hi"})

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, FailureAuthExpired, pubErr.Kind)
	assert.Contains(t, pubErr.Message, "validating access token")
}
