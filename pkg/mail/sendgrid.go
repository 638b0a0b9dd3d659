package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lucasvieira/condoplex-backend/pkg/config"
)

const sendPath = "/v3/mail/send"

// Email is a single outbound message.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Client delivers transactional email through the SendGrid v3 API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	from       string
}

func NewClient(cfg config.SendgridConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("sendgrid api key is required")
	}
	if cfg.DefaultFrom == "" {
		return nil, errors.New("sendgrid default from address is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.sendgrid.com"
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    base,
		apiKey:     cfg.APIKey,
		from:       cfg.DefaultFrom,
	}, nil
}

// Send delivers a single email. SendGrid accepts with 202.
func (c *Client) Send(ctx context.Context, email Email) error {
	if c == nil || c.httpClient == nil {
		return errors.New("mail client not initialized")
	}
	if email.To == "" {
		return errors.New("recipient address is required")
	}

	payload := map[string]any{
		"personalizations": []map[string]any{
			{"to": []map[string]string{{"email": email.To}}},
		},
		"from":    map[string]string{"email": c.from},
		"subject": email.Subject,
		"content": []map[string]string{
			{"type": "text/plain", "value": email.Body},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sendPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if len(b) > 0 {
			return fmt.Errorf("sendgrid send failed: %s: %s", resp.Status, strings.TrimSpace(string(b)))
		}
		return fmt.Errorf("sendgrid send failed: %s", resp.Status)
	}
	return nil
}
