package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrHTTPURLRequired is returned when the gateway URL is missing.
var ErrHTTPURLRequired = errors.New("sms: http url is required")

// HTTPConfig configures the HTTP provider.
type HTTPConfig struct {
	URL    string
	APIKey string
	Sender string
	// Timeout bounds a single request.
	Timeout time.Duration
	// MaxRetries counts retries after the first attempt on network errors and 5xx.
	MaxRetries uint64
	Client     *http.Client
}

// HTTP posts {"to","from","body","reference"} to a JSON SMS gateway.
type HTTP struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTP returns an HTTP provider; a zero Timeout becomes 5s.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if cfg.URL == "" {
		return nil, ErrHTTPURLRequired
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTP{cfg: cfg, client: client}, nil
}

type httpPayload struct {
	To        string `json:"to"`
	From      string `json:"from,omitempty"`
	Body      string `json:"body"`
	Reference string `json:"reference,omitempty"`
}

func (h *HTTP) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	body, err := json.Marshal(httpPayload{To: msg.To, From: h.cfg.Sender, Body: msg.Body, Reference: msg.Reference})
	if err != nil {
		return err
	}

	backoff := retry.WithMaxRetries(h.cfg.MaxRetries, retry.NewExponential(100*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		return h.post(ctx, body)
	})
}

func (h *HTTP) post(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.cfg.APIKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("sms: post: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("sms: gateway status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return retry.RetryableError(err)
	}
	return err
}
