package notify

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

// Notification is a Microsoft Graph activity-feed notification. The payload
// schema is Graph's; this sender just delivers it.
type Notification struct {
	UserID  string `json:"userId"`
	Topic   string `json:"topic"`
	Message string `json:"message"`
	IssueID string `json:"issueId,omitempty"`
}

// TokenSupplier returns a bearer token for the Graph call.
type TokenSupplier func(ctx context.Context) (string, error)

// GraphNotifier posts activity notifications to a configured Graph
// endpoint.
type GraphNotifier struct {
	endpoint string
	token    TokenSupplier
	client   *http.Client
}

func NewGraphNotifier(endpoint string, token TokenSupplier, timeout time.Duration) *GraphNotifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GraphNotifier{
		endpoint: strings.TrimSpace(endpoint),
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether an endpoint is configured.
func (n *GraphNotifier) Enabled() bool {
	return n != nil && n.endpoint != ""
}

// GraphToken builds the bearer-token supplier for the notifier. With a
// tenant and client id it runs the client-credentials flow and caches the
// token; otherwise the secret is used as a pre-issued static token, which
// suits proxy endpoints.
func GraphToken(tenantID, clientID, secret string) TokenSupplier {
	tenantID = strings.TrimSpace(tenantID)
	clientID = strings.TrimSpace(clientID)
	secret = strings.TrimSpace(secret)

	if tenantID == "" || clientID == "" {
		if secret == "" {
			return nil
		}
		return func(context.Context) (string, error) { return secret, nil }
	}

	tokenURL := "https://login.microsoftonline.com/" + url.PathEscape(tenantID) + "/oauth2/v2.0/token"
	var mu sync.Mutex
	var cached string
	var expiresAt time.Time
	httpClient := &http.Client{Timeout: 15 * time.Second}

	return func(ctx context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if cached != "" && time.Now().Before(expiresAt) {
			return cached, nil
		}

		form := url.Values{}
		form.Set("grant_type", "client_credentials")
		form.Set("client_id", clientID)
		form.Set("client_secret", secret)
		form.Set("scope", "https://graph.microsoft.com/.default")

		request, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return "", fmt.Errorf("build graph token request: %w", err)
		}
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		response, err := httpClient.Do(request)
		if err != nil {
			return "", fmt.Errorf("fetch graph token: %w", err)
		}
		defer response.Body.Close()
		if response.StatusCode >= 400 {
			return "", fmt.Errorf("graph token endpoint returned status %d", response.StatusCode)
		}

		var payload struct {
			AccessToken string `json:"access_token"`
			ExpiresIn   int    `json:"expires_in"`
		}
		if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
			return "", fmt.Errorf("decode graph token response: %w", err)
		}
		cached = payload.AccessToken
		expiresAt = time.Now().Add(time.Duration(payload.ExpiresIn-60) * time.Second)
		return cached, nil
	}
}

func (n *GraphNotifier) Notify(ctx context.Context, notification Notification) error {
	if !n.Enabled() {
		return fmt.Errorf("graph notification endpoint is not configured")
	}
	encoded, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if n.token != nil {
		token, err := n.token(ctx)
		if err != nil {
			return fmt.Errorf("acquire graph token: %w", err)
		}
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := n.client.Do(request)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 1024))

	if response.StatusCode >= 400 {
		return fmt.Errorf("graph notification rejected with status %d", response.StatusCode)
	}
	return nil
}
