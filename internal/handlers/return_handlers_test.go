package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"returns-service/internal/clients"
	"returns-service/internal/middleware"
	"returns-service/internal/models"
	"returns-service/internal/repository"
	"returns-service/internal/services"
)

// Stub collaborator clients backing the real orchestrator in handler tests.

type stubOrderClient struct {
	items      *clients.OrderItems
	paymentRef *clients.PaymentReference
}

func (s *stubOrderClient) GetOrderItems(ctx context.Context, orderID uuid.UUID, tenantID string) (*clients.OrderItems, error) {
	return s.items, nil
}

func (s *stubOrderClient) GetPaymentReference(ctx context.Context, orderID uuid.UUID, tenantID string) (*clients.PaymentReference, error) {
	return s.paymentRef, nil
}

type stubPaymentClient struct {
	err error
}

func (s *stubPaymentClient) Refund(ctx context.Context, paymentRef string, amount float64, memo string, tenantID string) (*clients.RefundResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &clients.RefundResponse{ID: "rf_1", PaymentRef: paymentRef, Amount: amount, Status: "succeeded"}, nil
}

type stubShippingClient struct{}

func (s *stubShippingClient) CreateReturnLabel(ctx context.Context, req *clients.CreateReturnLabelRequest) (*clients.ReturnLabelResponse, error) {
	return &clients.ReturnLabelResponse{
		LabelURL:       "https://labels.example.com/label.pdf",
		TrackingNumber: "TRK999",
		Carrier:        "UPS",
	}, nil
}

type stubNotificationClient struct{}

func (s *stubNotificationClient) Notify(ctx context.Context, recipientEmail string, event models.NotificationEvent, variables map[string]interface{}) error {
	return nil
}

type handlerFixture struct {
	store  *repository.MemoryStore
	router *gin.Engine
}

func newHandlerFixture(payment *stubPaymentClient) *handlerFixture {
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := repository.NewMemoryStore()
	service := services.NewReturnService(
		store,
		services.NewRefundCalculator(services.DefaultDeductionRates()),
		&stubOrderClient{paymentRef: &clients.PaymentReference{PaymentRef: "pay_abc"}},
		payment,
		&stubShippingClient{},
		&stubNotificationClient{},
		repository.NewStatsCache(nil, 0),
		logger,
		time.Second,
	)
	handler := NewReturnHandlers(service, logger)

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(middleware.RequireTenantID())
	returns := api.Group("/returns")
	returns.GET("/:id", handler.GetReturn)
	returns.POST("/:id/approve", handler.ApproveReturn)
	returns.POST("/:id/reject", handler.RejectReturn)
	returns.POST("/:id/received", handler.MarkReceived)
	returns.POST("/:id/refund", handler.ProcessRefund)
	returns.GET("/stats", handler.GetReturnStats)

	return &handlerFixture{store: store, router: router}
}

func (f *handlerFixture) seedReturn(t *testing.T, tenantID string, status models.ReturnStatus) *models.Return {
	t.Helper()

	ret := &models.Return{
		TenantID:   tenantID,
		OrderID:    uuid.New(),
		CustomerID: uuid.New(),
		Status:     models.ReturnStatusRequested,
		Reason:     models.ReturnReasonDefective,
		Items: []models.ReturnItem{
			{OrderItemID: uuid.New(), ProductName: "Widget", Quantity: 1, UnitPrice: 10.00},
		},
	}
	assert.NoError(t, f.store.Create(context.Background(), ret))
	if status != models.ReturnStatusRequested {
		ret.Status = status
		assert.NoError(t, f.store.Save(context.Background(), ret, ret.Version))
	}
	return ret
}

func (f *handlerFixture) do(method, path, tenantID string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestGetReturn_MissingTenantHeader(t *testing.T) {
	f := newHandlerFixture(&stubPaymentClient{})
	ret := f.seedReturn(t, "tenant-123", models.ReturnStatusRequested)

	w := f.do(http.MethodGet, "/api/v1/returns/"+ret.ID.String(), "", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_TENANT_ID")
}

func TestGetReturn_NotFound(t *testing.T) {
	f := newHandlerFixture(&stubPaymentClient{})

	w := f.do(http.MethodGet, "/api/v1/returns/"+uuid.New().String(), "tenant-123", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "RETURN_NOT_FOUND")
}

func TestGetReturn_TenantIsolation(t *testing.T) {
	f := newHandlerFixture(&stubPaymentClient{})
	ret := f.seedReturn(t, "tenant-a", models.ReturnStatusRequested)

	// Another tenant must not see the return at all
	w := f.do(http.MethodGet, "/api/v1/returns/"+ret.ID.String(), "tenant-b", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodGet, "/api/v1/returns/"+ret.ID.String(), "tenant-a", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestApproveReturn_Success(t *testing.T) {
	f := newHandlerFixture(&stubPaymentClient{})
	ret := f.seedReturn(t, "tenant-123", models.ReturnStatusRequested)

	w := f.do(http.MethodPost, "/api/v1/returns/"+ret.ID.String()+"/approve", "tenant-123", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var body models.Return
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, models.ReturnStatusApproved, body.Status)
}

func TestApproveReturn_IllegalTransitionMapsToConflict(t *testing.T) {
	f := newHandlerFixture(&stubPaymentClient{})
	ret := f.seedReturn(t, "tenant-123", models.ReturnStatusRefunded)

	w := f.do(http.MethodPost, "/api/v1/returns/"+ret.ID.String()+"/approve", "tenant-123", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ILLEGAL_TRANSITION")
	assert.Contains(t, w.Body.String(), string(models.ReturnStatusRefunded))
}

func TestRejectReturn_MissingReasonMapsToBadRequest(t *testing.T) {
	f := newHandlerFixture(&stubPaymentClient{})
	ret := f.seedReturn(t, "tenant-123", models.ReturnStatusRequested)

	w := f.do(http.MethodPost, "/api/v1/returns/"+ret.ID.String()+"/reject", "tenant-123", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_FAILED")
}

func TestProcessRefund_PaymentDeclinedMapsTo402(t *testing.T) {
	payment := &stubPaymentClient{err: &models.PaymentDeclinedError{PaymentRef: "pay_abc", Detail: "card expired"}}
	f := newHandlerFixture(payment)
	ret := f.seedReturn(t, "tenant-123", models.ReturnStatusReceived)

	w := f.do(http.MethodPost, "/api/v1/returns/"+ret.ID.String()+"/refund", "tenant-123", nil)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "PAYMENT_DECLINED")
	assert.Contains(t, w.Body.String(), "retryable")
}

func TestProcessRefund_PaymentTimeoutMapsTo504(t *testing.T) {
	payment := &stubPaymentClient{err: &models.PaymentTimeoutError{PaymentRef: "pay_abc"}}
	f := newHandlerFixture(payment)
	ret := f.seedReturn(t, "tenant-123", models.ReturnStatusReceived)

	w := f.do(http.MethodPost, "/api/v1/returns/"+ret.ID.String()+"/refund", "tenant-123", nil)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Contains(t, w.Body.String(), "PAYMENT_TIMEOUT")
}

func TestProcessRefund_Success(t *testing.T) {
	f := newHandlerFixture(&stubPaymentClient{})
	ret := f.seedReturn(t, "tenant-123", models.ReturnStatusReceived)

	w := f.do(http.MethodPost, "/api/v1/returns/"+ret.ID.String()+"/refund", "tenant-123", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var body models.Return
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, models.ReturnStatusRefunded, body.Status)
	assert.NotNil(t, body.RefundAmount)
	assert.Equal(t, 10.00, *body.RefundAmount)
}

func TestMarkReceived_Success(t *testing.T) {
	f := newHandlerFixture(&stubPaymentClient{})
	ret := f.seedReturn(t, "tenant-123", models.ReturnStatusApproved)

	w := f.do(http.MethodPost, "/api/v1/returns/"+ret.ID.String()+"/received", "tenant-123",
		map[string]bool{"carrierConfirmed": true})

	assert.Equal(t, http.StatusOK, w.Code)

	var body models.Return
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, models.ReturnStatusReceived, body.Status)
}

func TestGetReturnStats_UnknownWindowMapsToBadRequest(t *testing.T) {
	f := newHandlerFixture(&stubPaymentClient{})

	w := f.do(http.MethodGet, "/api/v1/returns/stats?window=2d", "tenant-123", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_FAILED")
}

func TestGetReturnStats_DefaultWindow(t *testing.T) {
	f := newHandlerFixture(&stubPaymentClient{})
	f.seedReturn(t, "tenant-123", models.ReturnStatusRequested)

	w := f.do(http.MethodGet, "/api/v1/returns/stats", "tenant-123", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var stats services.ReturnStats
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, services.StatsWindow30Days, stats.Window)
	assert.Equal(t, int64(1), stats.TotalReturns)
}
