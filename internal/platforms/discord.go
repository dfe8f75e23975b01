package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/crosspostr/crosspostr/internal/models"
	"github.com/crosspostr/crosspostr/internal/transfer"
)

const discordContentLimit = 2000

// DiscordAdapter publishes through an incoming webhook; the webhook URL is
// the whole credential.
type DiscordAdapter struct {
	client *http.Client
}

func NewDiscordAdapter(client *http.Client) *DiscordAdapter {
	return &DiscordAdapter{client: client}
}

func (a *DiscordAdapter) Platform() string {
	return models.PlatformDiscord
}

func (a *DiscordAdapter) Connect(ctx context.Context, rawCredentials []byte) (*Identity, error) {
	var creds transfer.DiscordCredentials
	if err := json.Unmarshal(rawCredentials, &creds); err != nil {
		return nil, permanentError(a.Platform(), "malformed credentials")
	}
	if !strings.HasPrefix(creds.WebhookURL, "https://") {
		return nil, permanentError(a.Platform(), "webhook url must be https")
	}

	// GET on a webhook URL returns its metadata without needing a bot token.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, creds.WebhookURL, nil)
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(a.Platform(), resp.StatusCode, readDiscordError(resp))
	}

	var info transfer.DiscordWebhookInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, transportError(a.Platform(), err)
	}

	normalized, err := json.Marshal(creds)
	if err != nil {
		return nil, err
	}

	return &Identity{
		AccountID:   info.ID,
		Name:        info.Name,
		Username:    info.Name,
		Credentials: normalized,
	}, nil
}

func (a *DiscordAdapter) Publish(ctx context.Context, credentials []byte, content Content) (*Outcome, error) {
	var creds transfer.DiscordCredentials
	if err := json.Unmarshal(credentials, &creds); err != nil {
		return nil, permanentError(a.Platform(), "malformed credentials")
	}

	payload := transfer.DiscordExecuteRequest{
		Content: truncate(content.Text, discordContentLimit),
	}
	for _, media := range content.Media {
		payload.Embeds = append(payload.Embeds, transfer.DiscordEmbed{
			Title: content.Title,
			Image: &transfer.DiscordEmbedImage{URL: media.URL},
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	// wait=true makes Discord return the created message instead of a 204.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, creds.WebhookURL+"?wait=true", bytes.NewReader(body))
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return nil, classifyStatus(a.Platform(), resp.StatusCode, readDiscordError(resp))
	}

	var message transfer.DiscordMessage
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&message); err != nil {
			return nil, transportError(a.Platform(), err)
		}
	}

	return &Outcome{ExternalID: message.ID}, nil
}

// Disconnect leaves the webhook in place; deleting it is the channel owner's
// call, not ours.
func (a *DiscordAdapter) Disconnect(ctx context.Context, credentials []byte) error {
	return nil
}

func readDiscordError(resp *http.Response) string {
	var e transfer.DiscordError
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		return ""
	}
	return e.Message
}
