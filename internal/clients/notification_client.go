package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"returns-service/internal/models"
)

// NotificationClient sends customer notifications via notification-service
// API. Notification delivery is best-effort: callers log failures and never
// let them block a return transition.
type NotificationClient interface {
	// Notify sends the templated email for a return lifecycle event
	Notify(ctx context.Context, recipientEmail string, event models.NotificationEvent, variables map[string]interface{}) error
}

// SendNotificationRequest represents the API request to notification-service
type SendNotificationRequest struct {
	Channel        string                 `json:"channel"`
	RecipientEmail string                 `json:"recipientEmail"`
	TemplateName   string                 `json:"templateName"`
	Variables      map[string]interface{} `json:"variables,omitempty"`
}

type notificationClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewNotificationClient creates a new notification client
func NewNotificationClient(baseURL string, timeout time.Duration) NotificationClient {
	return &notificationClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Notify sends the templated email for a return lifecycle event
func (c *notificationClient) Notify(ctx context.Context, recipientEmail string, event models.NotificationEvent, variables map[string]interface{}) error {
	if recipientEmail == "" {
		return fmt.Errorf("recipient email is empty")
	}

	req := SendNotificationRequest{
		Channel:        "email",
		RecipientEmail: recipientEmail,
		TemplateName:   string(event),
		Variables:      variables,
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal notification request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/notifications/send", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call notification service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("notification service returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
