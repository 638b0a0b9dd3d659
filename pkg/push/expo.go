package push

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

const (
	sendPath         = "/--/api/v2/push/send"
	defaultBatchSize = 100
)

// Message is a single push notification addressed to an Expo token.
type Message struct {
	To    string         `json:"to"`
	Title string         `json:"title,omitempty"`
	Body  string         `json:"body,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// Ticket reports per-message acceptance by the Expo gateway, in input order.
type Ticket struct {
	OK      bool
	Message string
}

// Client sends push notifications through the Expo push gateway.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	batchSize   int
}

func NewClient(cfg config.ExpoConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://exp.host"
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Client{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		baseURL:     base,
		accessToken: cfg.AccessToken,
		batchSize:   batch,
	}
}

// IsValidToken reports whether the destination looks like an Expo push token.
func IsValidToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken[") && strings.HasSuffix(token, "]") && len(token) > len("ExponentPushToken[]")
}

// Send delivers the messages in gateway-sized batches and returns one ticket
// per message, in input order. A transport failure fails the whole call.
func (c *Client) Send(ctx context.Context, messages []Message) ([]Ticket, error) {
	if c == nil || c.httpClient == nil {
		return nil, errors.New("push client not initialized")
	}
	if len(messages) == 0 {
		return nil, nil
	}

	tickets := make([]Ticket, 0, len(messages))
	for start := 0; start < len(messages); start += c.batchSize {
		end := start + c.batchSize
		if end > len(messages) {
			end = len(messages)
		}
		batch, err := c.sendBatch(ctx, messages[start:end])
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, batch...)
	}
	return tickets, nil
}

func (c *Client) sendBatch(ctx context.Context, messages []Message) ([]Ticket, error) {
	payload, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("encoding push batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sendPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if len(b) > 0 {
			return nil, fmt.Errorf("expo push send failed: %s: %s", resp.Status, strings.TrimSpace(string(b)))
		}
		return nil, fmt.Errorf("expo push send failed: %s", resp.Status)
	}

	var parsed struct {
		Data []struct {
			Status  string `json:"status"`
			Message string `json:"message"`
			Details struct {
				Error string `json:"error"`
			} `json:"details"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding expo response: %w", err)
	}
	if len(parsed.Data) != len(messages) {
		return nil, fmt.Errorf("expo returned %d tickets for %d messages", len(parsed.Data), len(messages))
	}

	tickets := make([]Ticket, len(parsed.Data))
	for i, ticket := range parsed.Data {
		if ticket.Status == "ok" {
			tickets[i] = Ticket{OK: true}
			continue
		}
		reason := ticket.Message
		if ticket.Details.Error != "" {
			reason = fmt.Sprintf("%s (%s)", reason, ticket.Details.Error)
		}
		tickets[i] = Ticket{OK: false, Message: reason}
	}
	return tickets, nil
}
