package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	config "github.com/crosspostr/crosspostr/configs"
	"github.com/crosspostr/crosspostr/internal/models"
	"github.com/crosspostr/crosspostr/internal/transfer"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"
)

const (
	linkedinBaseURL   = "https://api.linkedin.com"
	linkedinTextLimit = 3000
)

// LinkedinAdapter uses the OAuth2 authorization-code flow for connect and
// the UGC share API for publishing. Images go through the two-step
// register-upload-then-reference protocol.
type LinkedinAdapter struct {
	client  *http.Client
	baseURL string
	oauth   *oauth2.Config
}

func NewLinkedinAdapter(cfg config.Config, client *http.Client) *LinkedinAdapter {
	return &LinkedinAdapter{
		client:  client,
		baseURL: linkedinBaseURL,
		oauth: &oauth2.Config{
			ClientID:     cfg.LinkedinClientID,
			ClientSecret: cfg.LinkedinClientSecret,
			RedirectURL:  cfg.LinkedinRedirectURI,
			Scopes:       []string{"openid", "profile", "email", "w_member_social"},
			Endpoint:     linkedin.Endpoint,
		},
	}
}

func (a *LinkedinAdapter) Platform() string {
	return models.PlatformLinkedin
}

func (a *LinkedinAdapter) AuthCodeURL(state string) string {
	return a.oauth.AuthCodeURL(state)
}

func (a *LinkedinAdapter) ExchangeCode(ctx context.Context, code string) ([]byte, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)
	token, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}

	creds := transfer.LinkedinCredentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	return json.Marshal(creds)
}

func (a *LinkedinAdapter) Connect(ctx context.Context, rawCredentials []byte) (*Identity, error) {
	var creds transfer.LinkedinCredentials
	if err := json.Unmarshal(rawCredentials, &creds); err != nil {
		return nil, permanentError(a.Platform(), "malformed credentials")
	}
	if creds.AccessToken == "" {
		return nil, permanentError(a.Platform(), "access token is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v2/userinfo", nil)
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(a.Platform(), resp.StatusCode, readLinkedinError(resp.Body))
	}

	var userInfo transfer.LinkedinUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, transportError(a.Platform(), err)
	}

	// The member id rides along in the credential blob so Publish can build
	// the author URN without another userinfo round trip.
	creds.Sub = userInfo.Sub
	normalized, err := json.Marshal(creds)
	if err != nil {
		return nil, err
	}

	return &Identity{
		AccountID:   userInfo.Sub,
		Name:        userInfo.Name,
		Username:    userInfo.Email,
		Credentials: normalized,
		ExpiresAt:   creds.ExpiresAt,
	}, nil
}

func (a *LinkedinAdapter) RefreshCredentials(ctx context.Context, credentials []byte) ([]byte, time.Time, error) {
	var creds transfer.LinkedinCredentials
	if err := json.Unmarshal(credentials, &creds); err != nil {
		return nil, time.Time{}, permanentError(a.Platform(), "malformed credentials")
	}
	if creds.RefreshToken == "" {
		return nil, time.Time{}, &PublishError{Platform: a.Platform(), Kind: FailureAuthExpired, Message: "no refresh token on file"}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)
	source := a.oauth.TokenSource(ctx, &oauth2.Token{
		RefreshToken: creds.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	})
	token, err := source.Token()
	if err != nil {
		return nil, time.Time{}, &PublishError{Platform: a.Platform(), Kind: FailureAuthExpired, Message: err.Error()}
	}

	creds.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		creds.RefreshToken = token.RefreshToken
	}
	creds.ExpiresAt = token.Expiry

	refreshed, err := json.Marshal(creds)
	if err != nil {
		return nil, time.Time{}, err
	}
	return refreshed, token.Expiry, nil
}

func (a *LinkedinAdapter) Publish(ctx context.Context, credentials []byte, content Content) (*Outcome, error) {
	var creds transfer.LinkedinCredentials
	if err := json.Unmarshal(credentials, &creds); err != nil {
		return nil, permanentError(a.Platform(), "malformed credentials")
	}

	author := "urn:li:person:" + creds.Sub

	shareContent := transfer.LinkedinShareContent{
		ShareCommentary:    transfer.LinkedinText{Text: truncate(content.Text, linkedinTextLimit)},
		ShareMediaCategory: "NONE",
	}

	for _, media := range content.Media {
		asset, err := a.uploadImage(ctx, creds.AccessToken, author, media)
		if err != nil {
			return nil, err
		}
		shareContent.ShareMediaCategory = "IMAGE"
		shareMedia := transfer.LinkedinShareMedia{Status: "READY", Media: asset}
		if content.Title != "" {
			shareMedia.Title = &transfer.LinkedinText{Text: content.Title}
		}
		shareContent.Media = append(shareContent.Media, shareMedia)
	}

	share := transfer.LinkedinShareRequest{
		Author:         author,
		LifecycleState: "PUBLISHED",
		SpecificContent: transfer.LinkedinSpecificContent{
			ShareContent: shareContent,
		},
		Visibility: transfer.LinkedinVisibility{MemberNetworkVisibility: "PUBLIC"},
	}

	body, err := json.Marshal(share)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v2/ugcPosts", bytes.NewReader(body))
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, transportError(a.Platform(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(a.Platform(), resp.StatusCode, readLinkedinError(resp.Body))
	}

	var created transfer.LinkedinShareResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, transportError(a.Platform(), err)
	}

	return &Outcome{ExternalID: created.ID}, nil
}

// Disconnect drops the stored grant locally; LinkedIn has no token
// revocation endpoint for member tokens.
func (a *LinkedinAdapter) Disconnect(ctx context.Context, credentials []byte) error {
	return nil
}

func (a *LinkedinAdapter) uploadImage(ctx context.Context, accessToken, owner string, media Media) (string, error) {
	register := transfer.LinkedinRegisterUploadRequest{
		RegisterUploadRequest: transfer.LinkedinRegisterUpload{
			Recipes: []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			Owner:   owner,
			ServiceRelationships: []transfer.LinkedinServiceRelation{
				{RelationshipType: "OWNER", Identifier: "urn:li:userGeneratedContent"},
			},
		},
	}

	body, err := json.Marshal(register)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v2/assets?action=registerUpload", bytes.NewReader(body))
	if err != nil {
		return "", transportError(a.Platform(), err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", transportError(a.Platform(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(a.Platform(), resp.StatusCode, readLinkedinError(resp.Body))
	}

	var registered transfer.LinkedinRegisterUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&registered); err != nil {
		return "", transportError(a.Platform(), err)
	}

	data, err := fetchMedia(ctx, a.client, media.URL)
	if err != nil {
		return "", transportError(a.Platform(), err)
	}

	uploadURL := registered.Value.UploadMechanism.MediaUploadHTTPRequest.UploadURL
	uploadReq, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", transportError(a.Platform(), err)
	}
	uploadReq.Header.Set("Authorization", "Bearer "+accessToken)
	uploadReq.Header.Set("Content-Type", media.MimeType)

	uploadResp, err := a.client.Do(uploadReq)
	if err != nil {
		return "", transportError(a.Platform(), err)
	}
	defer uploadResp.Body.Close()

	if uploadResp.StatusCode != http.StatusCreated && uploadResp.StatusCode != http.StatusOK {
		return "", classifyStatus(a.Platform(), uploadResp.StatusCode, "image upload failed")
	}

	return registered.Value.Asset, nil
}

func readLinkedinError(body io.Reader) string {
	var e transfer.LinkedinError
	if err := json.NewDecoder(body).Decode(&e); err != nil {
		return ""
	}
	return e.Message
}
