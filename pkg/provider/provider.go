// Package provider talks to the chat provider's REST API: it issues the
// short-lived application token and resolves the signed download URL of
// one hour bucket's compressed export.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	appconfig "github.com/epw80/chat-archive-service/pkg/config"
)

// Provider defines the consumed contract of the chat provider.
type Provider interface {
	// IssueAppToken returns a short-lived application token used to
	// authorize subsequent calls.
	IssueAppToken(ctx context.Context) (string, error)

	// GetDownloadURL resolves the signed download URL of an hour
	// bucket's export. It returns ("", nil) when no export exists for
	// that hour, which is not an error.
	GetDownloadURL(ctx context.Context, hour, token string) (string, error)
}

// Client is the HTTP implementation of Provider.
type Client struct {
	baseURL    string
	appID      string
	appSecret  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a provider client from the application config.
func NewClient(cfg *appconfig.Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    cfg.ChatAPIBaseURL,
		appID:      cfg.ChatAppID,
		appSecret:  cfg.ChatAppSecret,
		httpClient: http.DefaultClient,
		logger:     logger,
	}
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// IssueAppToken requests an application token from the provider.
func (c *Client) IssueAppToken(ctx context.Context) (string, error) {
	body, err := json.Marshal(tokenRequest{
		GrantType:    "client_credentials",
		ClientID:     c.appID,
		ClientSecret: c.appSecret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request app token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		return "", fmt.Errorf("token request returned status %d", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access token")
	}

	c.logger.Debug("issued app token",
		slog.Int64("expiresIn", tok.ExpiresIn))

	return tok.AccessToken, nil
}

type exportResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// GetDownloadURL asks the provider for the signed export URL of one
// hour bucket (YYYYMMDDHH).
func (c *Client) GetDownloadURL(ctx context.Context, hour, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/chatmessages/"+hour, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build export request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request export for hour %s: %w", hour, err)
	}
	defer resp.Body.Close()

	// The provider reports "no messages this hour" as 404.
	if resp.StatusCode == http.StatusNotFound {
		drain(resp.Body)
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		return "", fmt.Errorf("export request for hour %s returned status %d", hour, resp.StatusCode)
	}

	var export exportResponse
	if err := json.NewDecoder(resp.Body).Decode(&export); err != nil {
		return "", fmt.Errorf("failed to decode export response: %w", err)
	}
	if len(export.Data) == 0 || export.Data[0].URL == "" {
		return "", nil
	}

	return export.Data[0].URL, nil
}

// drain consumes a response body so the connection can be reused.
func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, r)
}
