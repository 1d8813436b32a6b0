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

// ShippingClient creates return labels via shipping-service API
type ShippingClient interface {
	// CreateReturnLabel generates a prepaid return shipping label.
	// Failures surface as *models.ShippingServiceError and are retryable.
	CreateReturnLabel(ctx context.Context, req *CreateReturnLabelRequest) (*ReturnLabelResponse, error)
}

// ReturnAddress represents the customer address a label is generated for
type ReturnAddress struct {
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street"`
	Street2    string `json:"street2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// CreateReturnLabelRequest contains the data needed to generate a return label
type CreateReturnLabelRequest struct {
	TenantID    string         `json:"-"` // Passed via header
	OrderID     string         `json:"orderId"`
	RMANumber   string         `json:"rmaNumber"`
	FromAddress *ReturnAddress `json:"fromAddress,omitempty"`
}

// ReturnLabelResponse contains the generated label data
type ReturnLabelResponse struct {
	LabelURL       string `json:"labelUrl"`
	TrackingNumber string `json:"trackingNumber"`
	Carrier        string `json:"carrier"`
}

type shippingClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewShippingClient creates a new shipping service client
func NewShippingClient(baseURL string, timeout time.Duration) ShippingClient {
	return &shippingClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateReturnLabel generates a prepaid return shipping label
func (c *shippingClient) CreateReturnLabel(ctx context.Context, req *CreateReturnLabelRequest) (*ReturnLabelResponse, error) {
	url := fmt.Sprintf("%s/api/v1/return-labels", c.baseURL)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal label request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", req.TenantID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &models.ShippingServiceError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &models.ShippingServiceError{
			Detail: fmt.Sprintf("shipping service returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var label ReturnLabelResponse
	if err := json.Unmarshal(body, &label); err != nil {
		return nil, fmt.Errorf("failed to parse label response: %w", err)
	}

	return &label, nil
}
