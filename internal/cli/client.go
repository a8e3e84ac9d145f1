package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"coinfactory/internal/auth"
	"coinfactory/internal/game"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// APIError is a response the server produced, as opposed to a transport
// failure.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.StatusCode, e.Message)
}

// IsOffline reports whether err means the server could not be reached, in
// which case a write can be queued for `fctl sync`.
func IsOffline(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Signup(ctx context.Context, email, password string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/signup", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out, "")
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out, "")
	return out, err
}

func (c *Client) Factory(ctx context.Context, accessToken string) (game.FactoryView, error) {
	var out game.FactoryView
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/factory", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) Tracks(ctx context.Context, accessToken string) ([]game.TrackView, error) {
	var out struct {
		Tracks []game.TrackView `json:"tracks"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/factory/tracks", accessToken, nil, &out, "")
	return out.Tracks, err
}

func (c *Client) Cycles(ctx context.Context, accessToken string, limit int) ([]game.CycleLogRow, error) {
	var out struct {
		Cycles []game.CycleLogRow `json:"cycles"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/factory/cycles?limit=%d", limit), accessToken, nil, &out, "")
	return out.Cycles, err
}

func (c *Client) Collect(ctx context.Context, accessToken, idem string) (game.CycleResult, error) {
	var out game.CycleResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/factory/collect", accessToken, nil, &out, idem)
	return out, err
}

func (c *Client) BuyUpgrade(ctx context.Context, accessToken, track, upgrade, idem string) (game.UpgradeResult, error) {
	var out game.UpgradeResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/factory/upgrades/buy", accessToken, map[string]any{
		"track":   track,
		"upgrade": upgrade,
	}, &out, idem)
	return out, err
}

func (c *Client) RefundUpgrade(ctx context.Context, accessToken, track, upgrade, idem string) (game.UpgradeResult, error) {
	var out game.UpgradeResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/factory/upgrades/refund", accessToken, map[string]any{
		"track":   track,
		"upgrade": upgrade,
	}, &out, idem)
	return out, err
}

func (c *Client) SwapUpgrade(ctx context.Context, accessToken, track, upgrade string, index int, idem string) ([]game.UpgradeView, error) {
	var out struct {
		Pipeline []game.UpgradeView `json:"pipeline"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/factory/upgrades/swap", accessToken, map[string]any{
		"track":   track,
		"upgrade": upgrade,
		"index":   index,
	}, &out, idem)
	return out.Pipeline, err
}

func (c *Client) Transfer(ctx context.Context, accessToken, direction string, amount int64, idem string) (game.TransferResult, error) {
	var out game.TransferResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/factory/"+direction, accessToken, map[string]any{
		"amount": amount,
	}, &out, idem)
	return out, err
}

func (c *Client) SyncReplay(ctx context.Context, accessToken string, commands []game.ReplayCommand) ([]game.ReplayResult, error) {
	var out struct {
		Results []game.ReplayResult `json:"results"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/sync/replay", accessToken, map[string]any{
		"commands": commands,
	}, &out, "")
	return out.Results, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func errorMessage(raw []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}
