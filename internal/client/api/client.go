// Package api is the first-party client for the gateway: it authenticates
// over the pinned transport and keeps the session's tokens in the encrypted
// store so a fresh process can resume without re-prompting for credentials.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/altavia-air/altavia-api/internal/client/securestore"
	"github.com/altavia-air/altavia-api/internal/client/transport"
	"github.com/altavia-air/altavia-api/internal/models"
	appErrors "github.com/altavia-air/altavia-api/pkg/errors"
)

const (
	storeKeyAccess  = "access_token"
	storeKeyRefresh = "refresh_token"
)

// Client talks to the gateway's auth endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	store   *securestore.Store
}

// New builds a client. pins is required; store may be nil for stateless use.
func New(baseURL string, pins *transport.PinSet, store *securestore.Store) *Client {
	return &Client{
		baseURL: baseURL,
		http:    transport.NewPinnedClient(pins, 30*time.Second),
		store:   store,
	}
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *Client) postJSON(ctx context.Context, path string, payload, dest interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusUnauthorized:
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	case http.StatusTooManyRequests:
		return appErrors.Clone(appErrors.ErrRateLimitExceeded, "")
	default:
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if dest == nil {
		return nil
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return json.Unmarshal(env.Data, dest)
}

// Login authenticates and persists the issued pair.
func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	var out models.LoginResponse
	if err := c.postJSON(ctx, "/auth/login", map[string]string{"email": email, "password": password}, &out); err != nil {
		return nil, err
	}
	c.persist(out.AccessToken, out.RefreshToken)
	return &out, nil
}

// Refresh rotates the stored refresh token. A 401 means the session is gone
// for good, so the stored pair is wiped rather than retried.
func (c *Client) Refresh(ctx context.Context) (*models.RefreshResponse, error) {
	refresh, ok := c.storedRefreshToken()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "no stored session")
	}

	var out models.RefreshResponse
	if err := c.postJSON(ctx, "/auth/refresh", map[string]string{"refreshToken": refresh}, &out); err != nil {
		if appErrors.IsKind(err, appErrors.KindUnauthorized) && c.store != nil {
			_ = c.store.Clear()
		}
		return nil, err
	}
	c.persist(out.AccessToken, out.RefreshToken)
	return &out, nil
}

// AccessToken returns the stored access token, if any.
func (c *Client) AccessToken() (string, bool) {
	if c.store == nil {
		return "", false
	}
	raw, ok := c.store.Get(storeKeyAccess)
	return string(raw), ok
}

func (c *Client) storedRefreshToken() (string, bool) {
	if c.store == nil {
		return "", false
	}
	raw, ok := c.store.Get(storeKeyRefresh)
	return string(raw), ok
}

func (c *Client) persist(access, refresh string) {
	if c.store == nil {
		return
	}
	if err := c.store.Put(storeKeyAccess, []byte(access)); err != nil {
		return
	}
	_ = c.store.Put(storeKeyRefresh, []byte(refresh))
}
