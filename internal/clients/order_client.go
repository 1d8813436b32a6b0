package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// OrderClient looks up order data from orders-service. Returns are validated
// against the order's fulfilled line items before anything is persisted.
type OrderClient interface {
	// GetOrderItems retrieves the fulfilled line items of an order
	GetOrderItems(ctx context.Context, orderID uuid.UUID, tenantID string) (*OrderItems, error)
	// GetPaymentReference retrieves the order's original payment reference
	GetPaymentReference(ctx context.Context, orderID uuid.UUID, tenantID string) (*PaymentReference, error)
}

// OrderItems is the fulfilled line items of an order plus the customer
// context notifications need
type OrderItems struct {
	OrderID       uuid.UUID   `json:"orderId"`
	CustomerID    uuid.UUID   `json:"customerId"`
	CustomerEmail string      `json:"customerEmail"`
	Items         []OrderItem `json:"items"`
}

// OrderItem represents a fulfilled order line from orders-service
type OrderItem struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName"`
	SKU         string    `json:"sku"`
	Quantity    int       `json:"quantity"`
	UnitPrice   float64   `json:"unitPrice"`
}

// PaymentReference identifies the payment a refund is issued against
type PaymentReference struct {
	PaymentRef string `json:"paymentRef"`
	Gateway    string `json:"gateway"`
	Currency   string `json:"currency"`
}

type orderClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewOrderClient creates a new orders service client
func NewOrderClient(baseURL string, timeout time.Duration) OrderClient {
	return &orderClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetOrderItems retrieves the fulfilled line items of an order
func (c *orderClient) GetOrderItems(ctx context.Context, orderID uuid.UUID, tenantID string) (*OrderItems, error) {
	url := fmt.Sprintf("%s/api/v1/orders/%s/items", c.baseURL, orderID.String())

	var items OrderItems
	if err := c.getJSON(ctx, url, tenantID, &items); err != nil {
		return nil, err
	}
	return &items, nil
}

// GetPaymentReference retrieves the order's original payment reference
func (c *orderClient) GetPaymentReference(ctx context.Context, orderID uuid.UUID, tenantID string) (*PaymentReference, error) {
	url := fmt.Sprintf("%s/api/v1/orders/%s/payment-reference", c.baseURL, orderID.String())

	var ref PaymentReference
	if err := c.getJSON(ctx, url, tenantID, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

func (c *orderClient) getJSON(ctx context.Context, url, tenantID string, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call orders service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("orders service returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse orders service response: %w", err)
	}
	return nil
}
