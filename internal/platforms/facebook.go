package platforms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/crosspostr/crosspostr/configs"
	"github.com/crosspostr/crosspostr/internal/models"
	"github.com/crosspostr/crosspostr/internal/transfer"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

const (
	facebookBaseURL   = "https://graph.facebook.com/v19.0"
	facebookTextLimit = 63206
)

// FacebookAdapter publishes to a Page feed through the Graph API. Connect
// exchanges the OAuth code for a user token, then stores the token of the
// first managed Page.
type FacebookAdapter struct {
	client  *http.Client
	baseURL string
	oauth   *oauth2.Config
}

func NewFacebookAdapter(cfg config.Config, client *http.Client) *FacebookAdapter {
	return &FacebookAdapter{
		client:  client,
		baseURL: facebookBaseURL,
		oauth: &oauth2.Config{
			ClientID:     cfg.FacebookClientID,
			ClientSecret: cfg.FacebookClientSecret,
			RedirectURL:  cfg.FacebookRedirectURI,
			Scopes:       []string{"pages_manage_posts", "pages_read_engagement", "pages_show_list"},
			Endpoint:     facebook.Endpoint,
		},
	}
}

func (a *FacebookAdapter) Platform() string {
	return models.PlatformFacebook
}

func (a *FacebookAdapter) AuthCodeURL(state string) string {
	return a.oauth.AuthCodeURL(state)
}

func (a *FacebookAdapter) ExchangeCode(ctx context.Context, code string) ([]byte, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)
	token, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}

	creds := transfer.FacebookCredentials{
		AccessToken: token.AccessToken,
		ExpiresAt:   token.Expiry,
	}
	return json.Marshal(creds)
}

func (a *FacebookAdapter) Connect(ctx context.Context, rawCredentials []byte) (*Identity, error) {
	var creds transfer.FacebookCredentials
	if err := json.Unmarshal(rawCredentials, &creds); err != nil {
		return nil, permanentError(a.Platform(), "malformed credentials")
	}
	if creds.AccessToken == "" {
		return nil, permanentError(a.Platform(), "access token is required")
	}

	endpoint := a.baseURL + "/me/accounts?access_token=" + url.QueryEscape(creds.AccessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(a.Platform(), resp.StatusCode, readFacebookError(resp))
	}

	var pages transfer.FacebookPagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&pages); err != nil {
		return nil, transportError(a.Platform(), err)
	}
	if len(pages.Data) == 0 {
		return nil, permanentError(a.Platform(), "no managed pages on this account")
	}

	page := pages.Data[0]
	creds.PageID = page.ID
	creds.AccessToken = page.AccessToken

	normalized, err := json.Marshal(creds)
	if err != nil {
		return nil, err
	}

	return &Identity{
		AccountID:   page.ID,
		Name:        page.Name,
		Username:    page.Name,
		Credentials: normalized,
		ExpiresAt:   creds.ExpiresAt,
	}, nil
}

// RefreshCredentials exchanges the stored token for a long-lived one.
func (a *FacebookAdapter) RefreshCredentials(ctx context.Context, credentials []byte) ([]byte, time.Time, error) {
	var creds transfer.FacebookCredentials
	if err := json.Unmarshal(credentials, &creds); err != nil {
		return nil, time.Time{}, permanentError(a.Platform(), "malformed credentials")
	}

	params := url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", a.oauth.ClientID)
	params.Set("client_secret", a.oauth.ClientSecret)
	params.Set("fb_exchange_token", creds.AccessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/oauth/access_token?"+params.Encode(), nil)
	if err != nil {
		return nil, time.Time{}, transportError(a.Platform(), err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, time.Time{}, transportError(a.Platform(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, time.Time{}, classifyStatus(a.Platform(), resp.StatusCode, readFacebookError(resp))
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, time.Time{}, transportError(a.Platform(), err)
	}

	creds.AccessToken = token.AccessToken
	creds.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)

	refreshed, err := json.Marshal(creds)
	if err != nil {
		return nil, time.Time{}, err
	}
	return refreshed, creds.ExpiresAt, nil
}

func (a *FacebookAdapter) Publish(ctx context.Context, credentials []byte, content Content) (*Outcome, error) {
	var creds transfer.FacebookCredentials
	if err := json.Unmarshal(credentials, &creds); err != nil {
		return nil, permanentError(a.Platform(), "malformed credentials")
	}
	if creds.PageID == "" {
		return nil, permanentError(a.Platform(), "no page on file for this account")
	}

	params := url.Values{}
	params.Set("access_token", creds.AccessToken)

	var endpoint string
	if len(content.Media) > 0 {
		endpoint = a.baseURL + "/" + creds.PageID + "/photos"
		params.Set("url", content.Media[0].URL)
		params.Set("caption", truncate(content.Text, facebookTextLimit))
	} else {
		endpoint = a.baseURL + "/" + creds.PageID + "/feed"
		params.Set("message", truncate(content.Text, facebookTextLimit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(a.Platform(), resp.StatusCode, readFacebookError(resp))
	}

	var published transfer.FacebookPublishResponse
	if err := json.NewDecoder(resp.Body).Decode(&published); err != nil {
		return nil, transportError(a.Platform(), err)
	}

	externalID := published.PostID
	if externalID == "" {
		externalID = published.ID
	}

	return &Outcome{ExternalID: externalID}, nil
}

// Disconnect revokes the app's permissions on the page token, best effort.
func (a *FacebookAdapter) Disconnect(ctx context.Context, credentials []byte) error {
	var creds transfer.FacebookCredentials
	if err := json.Unmarshal(credentials, &creds); err != nil {
		return nil
	}

	endpoint := a.baseURL + "/me/permissions?access_token=" + url.QueryEscape(creds.AccessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return transportError(a.Platform(), err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return transportError(a.Platform(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(a.Platform(), resp.StatusCode, readFacebookError(resp))
	}
	return nil
}

func readFacebookError(resp *http.Response) string {
	var e transfer.FacebookErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		return ""
	}
	return e.Error.Message
}
