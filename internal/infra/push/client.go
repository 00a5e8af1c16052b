// Package push delivers due notifications to the push gateway that fans
// them out to user devices.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/medbox-genie/reminder-scheduling/internal/domain"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type pushRequest struct {
	Identifier string    `json:"identifier"`
	UserID     string    `json:"user_id"`
	Medication string    `json:"medication"`
	Kind       string    `json:"kind"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Category   string    `json:"category"`
	FireAt     time.Time `json:"fire_at"`
}

// Send delivers one notification to the gateway.
func (c *Client) Send(ctx context.Context, n domain.Notification) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("failed to parse base URL: %w", err)
	}
	u.Path = "/api/v1/push"

	payload, err := json.Marshal(pushRequest{
		Identifier: n.Identifier,
		UserID:     n.UserID,
		Medication: n.Medication,
		Kind:       n.Kind.String(),
		Title:      n.Title,
		Body:       n.Body,
		Category:   n.Category,
		FireAt:     n.FireAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode push payload: %w", err)
	}

	slog.Debug("sending notification to push gateway",
		slog.String("identifier", n.Identifier),
		slog.String("kind", n.Kind.String()),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("failed to send request to push gateway",
			slog.String("identifier", n.Identifier),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		slog.Error("unexpected status code from push gateway",
			slog.String("identifier", n.Identifier),
			slog.Int("status_code", resp.StatusCode),
		)
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}
