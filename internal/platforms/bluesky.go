package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/crosspostr/crosspostr/internal/models"
	"github.com/crosspostr/crosspostr/internal/transfer"
)

const (
	blueskyBaseURL     = "https://bsky.social/xrpc"
	blueskyPostLimit   = 300
	blueskyMaxSessions = 128
)

type blueskySession struct {
	accessJwt string
	did       string
	createdAt time.Time
}

// BlueskyAdapter speaks the AT Protocol: a session is created from the
// stored handle + app password, media blobs are uploaded first, then the
// post record references them.
type BlueskyAdapter struct {
	client  *http.Client
	baseURL string

	mu       sync.Mutex
	sessions map[string]*blueskySession
}

func NewBlueskyAdapter(client *http.Client) *BlueskyAdapter {
	return &BlueskyAdapter{
		client:   client,
		baseURL:  blueskyBaseURL,
		sessions: make(map[string]*blueskySession),
	}
}

func (a *BlueskyAdapter) Platform() string {
	return models.PlatformBluesky
}

func (a *BlueskyAdapter) Connect(ctx context.Context, rawCredentials []byte) (*Identity, error) {
	var creds transfer.BlueskyCredentials
	if err := json.Unmarshal(rawCredentials, &creds); err != nil {
		return nil, permanentError(a.Platform(), "malformed credentials")
	}
	if creds.Identifier == "" || creds.AppPassword == "" {
		return nil, permanentError(a.Platform(), "identifier and app password are required")
	}

	session, resp, err := a.createSession(ctx, creds)
	if err != nil {
		return nil, err
	}
	_ = session

	normalized, err := json.Marshal(creds)
	if err != nil {
		return nil, err
	}

	return &Identity{
		AccountID:   resp.Did,
		Name:        resp.Handle,
		Username:    resp.Handle,
		Credentials: normalized,
	}, nil
}

func (a *BlueskyAdapter) Publish(ctx context.Context, credentials []byte, content Content) (*Outcome, error) {
	var creds transfer.BlueskyCredentials
	if err := json.Unmarshal(credentials, &creds); err != nil {
		return nil, permanentError(a.Platform(), "malformed credentials")
	}

	// Length is validated, not truncated: silently cutting a post apart is
	// worse than telling the user it does not fit.
	if len([]rune(content.Text)) > blueskyPostLimit {
		return nil, permanentError(a.Platform(), fmt.Sprintf("post exceeds %d character limit", blueskyPostLimit))
	}

	session, err := a.session(ctx, creds)
	if err != nil {
		return nil, err
	}

	var embed *transfer.BlueskyEmbed
	for _, media := range content.Media {
		blob, err := a.uploadBlob(ctx, session, media)
		if err != nil {
			return nil, err
		}
		if embed == nil {
			embed = &transfer.BlueskyEmbed{Type: "app.bsky.embed.images"}
		}
		embed.Images = append(embed.Images, transfer.BlueskyImage{Alt: content.Title, Image: *blob})
	}

	record := transfer.BlueskyCreateRecordRequest{
		Repo:       session.did,
		Collection: "app.bsky.feed.post",
		Record: transfer.BlueskyRecord{
			Type:      "app.bsky.feed.post",
			Text:      content.Text,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
			Embed:     embed,
		},
	}

	body, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/com.atproto.repo.createRecord", bytes.NewReader(body))
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}
	req.Header.Set("Authorization", "Bearer "+session.accessJwt)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// A dead session is not recoverable within this call; drop it so the
		// next attempt logs in fresh.
		if resp.StatusCode == http.StatusUnauthorized {
			a.evict(creds.Identifier)
		}
		return nil, classifyStatus(a.Platform(), resp.StatusCode, readBlueskyError(resp.Body))
	}

	var created transfer.BlueskyCreateRecordResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, transportError(a.Platform(), err)
	}

	return &Outcome{ExternalID: created.URI}, nil
}

// Disconnect only needs to forget local state; app passwords are revoked by
// the user on the Bluesky side.
func (a *BlueskyAdapter) Disconnect(ctx context.Context, credentials []byte) error {
	var creds transfer.BlueskyCredentials
	if err := json.Unmarshal(credentials, &creds); err != nil {
		return nil
	}
	a.evict(creds.Identifier)
	return nil
}

func (a *BlueskyAdapter) session(ctx context.Context, creds transfer.BlueskyCredentials) (*blueskySession, error) {
	a.mu.Lock()
	cached, ok := a.sessions[creds.Identifier]
	a.mu.Unlock()

	// Access tokens are short-lived; anything older than an hour is re-created
	// rather than refreshed.
	if ok && time.Since(cached.createdAt) < time.Hour {
		return cached, nil
	}

	session, _, err := a.createSession(ctx, creds)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (a *BlueskyAdapter) createSession(ctx context.Context, creds transfer.BlueskyCredentials) (*blueskySession, *transfer.BlueskySessionResponse, error) {
	body, err := json.Marshal(transfer.BlueskySessionRequest{
		Identifier: creds.Identifier,
		Password:   creds.AppPassword,
	})
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/com.atproto.server.createSession", bytes.NewReader(body))
	if err != nil {
		return nil, nil, transportError(a.Platform(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, nil, transportError(a.Platform(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, classifyStatus(a.Platform(), resp.StatusCode, readBlueskyError(resp.Body))
	}

	var sessionResp transfer.BlueskySessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sessionResp); err != nil {
		return nil, nil, transportError(a.Platform(), err)
	}

	session := &blueskySession{
		accessJwt: sessionResp.AccessJwt,
		did:       sessionResp.Did,
		createdAt: time.Now(),
	}
	a.store(creds.Identifier, session)

	return session, &sessionResp, nil
}

func (a *BlueskyAdapter) uploadBlob(ctx context.Context, session *blueskySession, media Media) (*transfer.BlueskyBlob, error) {
	data, err := fetchMedia(ctx, a.client, media.URL)
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/com.atproto.repo.uploadBlob", bytes.NewReader(data))
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}
	req.Header.Set("Authorization", "Bearer "+session.accessJwt)
	req.Header.Set("Content-Type", media.MimeType)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(a.Platform(), resp.StatusCode, readBlueskyError(resp.Body))
	}

	var blobResp transfer.BlueskyBlobResponse
	if err := json.NewDecoder(resp.Body).Decode(&blobResp); err != nil {
		return nil, transportError(a.Platform(), err)
	}

	return &blobResp.Blob, nil
}

func (a *BlueskyAdapter) store(identifier string, session *blueskySession) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.sessions[identifier]; !ok && len(a.sessions) >= blueskyMaxSessions {
		oldest := ""
		for id, s := range a.sessions {
			if oldest == "" || s.createdAt.Before(a.sessions[oldest].createdAt) {
				oldest = id
			}
		}
		delete(a.sessions, oldest)
	}
	a.sessions[identifier] = session
}

func (a *BlueskyAdapter) evict(identifier string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, identifier)
}

func readBlueskyError(body io.Reader) string {
	var e transfer.BlueskyError
	if err := json.NewDecoder(body).Decode(&e); err != nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// fetchMedia pulls a stored asset back so it can be re-uploaded through a
// platform's own upload protocol.
func fetchMedia(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching media %s: status %d", url, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
