package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"returns-service/internal/models"
)

// PaymentClient defines the interface for communicating with payment-service
type PaymentClient interface {
	// Refund requests a refund against the order's original payment.
	// Declines surface as *models.PaymentDeclinedError, timeouts as
	// *models.PaymentTimeoutError; both are retryable by the caller.
	Refund(ctx context.Context, paymentRef string, amount float64, memo string, tenantID string) (*RefundResponse, error)
}

// RefundRequest represents a request to create a refund
type RefundRequest struct {
	Amount float64 `json:"amount"`
	Memo   string  `json:"memo,omitempty"`
}

// RefundResponse represents a refund response from payment-service
type RefundResponse struct {
	ID              string  `json:"id"`
	PaymentRef      string  `json:"paymentRef"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
	GatewayRefundID string  `json:"gatewayRefundId,omitempty"`
	CreatedAt       string  `json:"createdAt"`
}

type paymentClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewPaymentClient creates a new payment service client
func NewPaymentClient(baseURL string, timeout time.Duration) PaymentClient {
	return &paymentClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Refund requests a refund for the given payment reference
func (c *paymentClient) Refund(ctx context.Context, paymentRef string, amount float64, memo string, tenantID string) (*RefundResponse, error) {
	url := fmt.Sprintf("%s/api/v1/payments/%s/refund", c.baseURL, paymentRef)

	payload, err := json.Marshal(RefundRequest{Amount: amount, Memo: memo})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal refund request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, &models.PaymentTimeoutError{PaymentRef: paymentRef}
		}
		return nil, fmt.Errorf("failed to call payment service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, &models.PaymentDeclinedError{PaymentRef: paymentRef, Detail: string(body)}
	case resp.StatusCode == http.StatusGatewayTimeout:
		return nil, &models.PaymentTimeoutError{PaymentRef: paymentRef}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("payment service returned status %d: %s", resp.StatusCode, string(body))
	}

	var refund RefundResponse
	if err := json.Unmarshal(body, &refund); err != nil {
		return nil, fmt.Errorf("failed to parse refund response: %w", err)
	}

	return &refund, nil
}

// isTimeout reports whether the transport error was a deadline or network timeout
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
