package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// graphScope requests every application permission granted to the client.
const graphScope = "https://graph.microsoft.com/.default"

// tokenExpiryBuffer is subtracted from the reported lifetime so a token is
// never used in its last minutes.
const tokenExpiryBuffer = 5 * time.Minute

// appToken holds the client-credentials token for one app registration.
// Concurrent senders share it; the mutex also keeps them from fetching twice.
type appToken struct {
	mu         sync.Mutex
	value      string
	validUntil time.Time

	endpoint string
	form     url.Values
	client   *http.Client
}

func newAppToken(endpoint, clientID, clientSecret string, client *http.Client) *appToken {
	return &appToken{
		endpoint: endpoint,
		form: url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {clientID},
			"client_secret": {clientSecret},
			"scope":         {graphScope},
		},
		client: client,
	}
}

// Get returns the held token while it is valid and fetches one otherwise.
func (a *appToken) Get(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.value == "" || !time.Now().Before(a.validUntil) {
		if err := a.renewLocked(ctx); err != nil {
			return "", err
		}
	}
	return a.value, nil
}

// Renew fetches a token even if the held one has not expired, for use after
// the API rejected it.
func (a *appToken) Renew(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.value, a.validUntil = "", time.Time{}
	if err := a.renewLocked(ctx); err != nil {
		return "", err
	}
	return a.value, nil
}

func (a *appToken) renewLocked(ctx context.Context) error {
	resp, err := a.fetch(ctx)
	if err != nil {
		return err
	}

	a.value = resp.AccessToken
	a.validUntil = time.Now().Add(time.Duration(resp.ExpiresIn)*time.Second - tokenExpiryBuffer)
	return nil
}

// fetch posts the client credentials to the token endpoint.
func (a *appToken) fetch(ctx context.Context) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, strings.NewReader(a.form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if out.AccessToken == "" {
		return nil, errors.New("token response missing access_token")
	}
	return &out, nil
}
