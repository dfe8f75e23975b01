package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/crosspostr/crosspostr/internal/models"
	"github.com/crosspostr/crosspostr/internal/transfer"
)

const (
	telegramBaseURL      = "https://api.telegram.org"
	telegramTextLimit    = 4096
	telegramCaptionLimit = 1024
)

// TelegramAdapter is stateless per call: every publish is one bot API
// request authenticated by the stored bot token.
type TelegramAdapter struct {
	client  *http.Client
	baseURL string
}

func NewTelegramAdapter(client *http.Client) *TelegramAdapter {
	return &TelegramAdapter{client: client, baseURL: telegramBaseURL}
}

func (a *TelegramAdapter) Platform() string {
	return models.PlatformTelegram
}

func (a *TelegramAdapter) Connect(ctx context.Context, rawCredentials []byte) (*Identity, error) {
	var creds transfer.TelegramCredentials
	if err := json.Unmarshal(rawCredentials, &creds); err != nil {
		return nil, permanentError(a.Platform(), "malformed credentials")
	}
	if creds.BotToken == "" || creds.ChatID == "" {
		return nil, permanentError(a.Platform(), "bot token and chat id are required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/bot%s/getMe", a.baseURL, creds.BotToken), nil)
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}
	defer resp.Body.Close()

	var me transfer.TelegramGetMeResponse
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return nil, transportError(a.Platform(), err)
	}
	if !me.OK {
		return nil, classifyStatus(a.Platform(), resp.StatusCode, me.Description)
	}

	normalized, err := json.Marshal(creds)
	if err != nil {
		return nil, err
	}

	// One connected "account" is a (bot, chat) pair; the same bot posting to
	// two chats is two destinations.
	return &Identity{
		AccountID:   fmt.Sprintf("%d:%s", me.Result.ID, creds.ChatID),
		Name:        me.Result.FirstName,
		Username:    me.Result.Username,
		Credentials: normalized,
	}, nil
}

func (a *TelegramAdapter) Publish(ctx context.Context, credentials []byte, content Content) (*Outcome, error) {
	var creds transfer.TelegramCredentials
	if err := json.Unmarshal(credentials, &creds); err != nil {
		return nil, permanentError(a.Platform(), "malformed credentials")
	}

	var method string
	params := url.Values{}
	params.Set("chat_id", creds.ChatID)

	if len(content.Media) > 0 {
		method = "sendPhoto"
		params.Set("photo", content.Media[0].URL)
		params.Set("caption", truncate(content.Text, telegramCaptionLimit))
	} else {
		method = "sendMessage"
		params.Set("text", truncate(content.Text, telegramTextLimit))
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", a.baseURL, creds.BotToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(params.Encode()))
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}
	defer resp.Body.Close()

	var result transfer.TelegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, transportError(a.Platform(), err)
	}
	if !result.OK {
		return nil, classifyStatus(a.Platform(), resp.StatusCode, result.Description)
	}

	return &Outcome{ExternalID: strconv.FormatInt(result.Result.MessageID, 10)}, nil
}

// Disconnect is a no-op: bot tokens are managed by the user through
// BotFather, there is nothing to revoke remotely.
func (a *TelegramAdapter) Disconnect(ctx context.Context, credentials []byte) error {
	return nil
}
