package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type APIClientConfig struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

// APIClient reads the bot's status API and unwraps its
// {success, data, error} envelope.
type APIClient struct {
	cfg  APIClientConfig
	http *http.Client
	log  zerolog.Logger
}

func NewAPIClient(cfg APIClientConfig, log zerolog.Logger) *APIClient {
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &APIClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

// Get fetches path and decodes the envelope's data into out.
func (c *APIClient) Get(ctx context.Context, path string, out any) error {
	err := c.get(ctx, path, out)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("Status API request failed")
	}
	return err
}

func (c *APIClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("status API %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if !envelope.Success {
		return fmt.Errorf("API error: %s", envelope.Error)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
