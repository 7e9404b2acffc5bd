package teams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const botTokenURL = "https://login.microsoftonline.com/botframework.com/oauth2/v2.0/token"

// TokenSupplier returns a connector-service bearer token.
type TokenSupplier func(ctx context.Context) (string, error)

// Client posts reply activities to the connector service.
type Client struct {
	httpClient *http.Client
	token      TokenSupplier
}

func NewClient(token TokenSupplier, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		token:      token,
	}
}

// SendActivity delivers an activity to the conversation named inside it.
func (c *Client) SendActivity(ctx context.Context, activity Activity) error {
	serviceURL := strings.TrimRight(strings.TrimSpace(activity.ServiceURL), "/")
	if serviceURL == "" {
		return fmt.Errorf("activity has no service url")
	}
	if activity.Conversation.ID == "" {
		return fmt.Errorf("activity has no conversation id")
	}

	endpoint := fmt.Sprintf("%s/v3/conversations/%s/activities", serviceURL, url.PathEscape(activity.Conversation.ID))
	if activity.ReplyToID != "" {
		endpoint += "/" + url.PathEscape(activity.ReplyToID)
	}

	encoded, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("encode activity: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build activity request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return fmt.Errorf("acquire bot token: %w", err)
		}
		if token != "" {
			request.Header.Set("Authorization", "Bearer "+token)
		}
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("send activity: %w", err)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 1024))

	if response.StatusCode >= 400 {
		return fmt.Errorf("connector rejected activity with status %d", response.StatusCode)
	}
	return nil
}

// AppCredentialsToken fetches and caches a client-credentials token for the
// bot app. An empty app id yields empty tokens, which suits the Bot
// Framework emulator.
func AppCredentialsToken(appID, appPassword string) TokenSupplier {
	var mu sync.Mutex
	var cached string
	var expiresAt time.Time
	httpClient := &http.Client{Timeout: 15 * time.Second}

	return func(ctx context.Context) (string, error) {
		if strings.TrimSpace(appID) == "" {
			return "", nil
		}
		mu.Lock()
		defer mu.Unlock()
		if cached != "" && time.Now().Before(expiresAt) {
			return cached, nil
		}

		form := url.Values{}
		form.Set("grant_type", "client_credentials")
		form.Set("client_id", appID)
		form.Set("client_secret", appPassword)
		form.Set("scope", "https://api.botframework.com/.default")

		request, err := http.NewRequestWithContext(ctx, http.MethodPost, botTokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return "", fmt.Errorf("build token request: %w", err)
		}
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		response, err := httpClient.Do(request)
		if err != nil {
			return "", fmt.Errorf("fetch bot token: %w", err)
		}
		defer response.Body.Close()
		if response.StatusCode >= 400 {
			return "", fmt.Errorf("token endpoint returned status %d", response.StatusCode)
		}

		var payload struct {
			AccessToken string `json:"access_token"`
			ExpiresIn   int    `json:"expires_in"`
		}
		if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
			return "", fmt.Errorf("decode token response: %w", err)
		}
		cached = payload.AccessToken
		expiresAt = time.Now().Add(time.Duration(payload.ExpiresIn-60) * time.Second)
		return cached, nil
	}
}
