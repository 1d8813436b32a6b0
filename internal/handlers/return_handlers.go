package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"returns-service/internal/models"
	"returns-service/internal/repository"
	"returns-service/internal/services"
)

// ReturnHandlers is the thin HTTP adapter translating requests into
// orchestrator calls. All decision logic lives in the services package.
type ReturnHandlers struct {
	returnService *services.ReturnService
	logger        *logrus.Logger
}

func NewReturnHandlers(returnService *services.ReturnService, logger *logrus.Logger) *ReturnHandlers {
	return &ReturnHandlers{
		returnService: returnService,
		logger:        logger,
	}
}

// getTenantID extracts tenant ID from context
// SECURITY: RequireTenantID middleware ensures this is always set
func getTenantID(c *gin.Context) (string, bool) {
	tenantID, exists := c.Get("tenant_id")
	if !exists {
		return "", false
	}
	return tenantID.(string), true
}

// actorID extracts the acting staff/customer user from headers, if any
func actorID(c *gin.Context) *uuid.UUID {
	raw := c.GetHeader("X-User-ID")
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

// respondError maps domain errors onto HTTP statuses
func respondError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	var transitionErr *models.IllegalTransitionError
	var declinedErr *models.PaymentDeclinedError
	var timeoutErr *models.PaymentTimeoutError
	var shippingErr *models.ShippingServiceError

	switch {
	case errors.Is(err, models.ErrReturnNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "RETURN_NOT_FOUND", "message": err.Error()})
	case errors.Is(err, models.ErrConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{"error": "CONCURRENT_MODIFICATION", "message": err.Error(), "retryable": true})
	case errors.Is(err, models.ErrInvalidRefundInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REFUND_INPUT", "message": err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_FAILED", "message": err.Error()})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "ILLEGAL_TRANSITION",
			"message": err.Error(),
			"from":    transitionErr.From,
			"to":      transitionErr.To,
		})
	case errors.As(err, &declinedErr):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "PAYMENT_DECLINED", "message": err.Error(), "retryable": true})
	case errors.As(err, &timeoutErr):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "PAYMENT_TIMEOUT", "message": err.Error(), "retryable": true})
	case errors.As(err, &shippingErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "SHIPPING_SERVICE_ERROR", "message": err.Error(), "retryable": true})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR", "message": err.Error()})
	}
}

// HealthCheck responds to health/readiness probes
func (h *ReturnHandlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "returns-service"})
}

// CreateReturn creates a new return request for an order
func (h *ReturnHandlers) CreateReturn(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MISSING_TENANT_ID", "message": "X-Tenant-ID header is required"})
		return
	}

	var req services.CreateReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": err.Error()})
		return
	}
	req.TenantID = tenantID

	audit := services.WithAudit(h.logger, "create", c.GetHeader("X-User-ID"))
	ret, err := audit(func(ctx context.Context) (*models.Return, error) {
		return h.returnService.CreateReturn(ctx, &req)
	})(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ret)
}

// GetReturn retrieves a return by ID
func (h *ReturnHandlers) GetReturn(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MISSING_TENANT_ID", "message": "X-Tenant-ID header is required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_RETURN_ID", "message": "return ID must be a UUID"})
		return
	}

	ret, err := h.returnService.GetReturn(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	// SECURITY: Verify return belongs to this tenant
	if ret.TenantID != tenantID {
		c.JSON(http.StatusNotFound, gin.H{"error": "RETURN_NOT_FOUND"})
		return
	}

	c.JSON(http.StatusOK, ret)
}

// GetReturnByRMA retrieves a return by RMA number
func (h *ReturnHandlers) GetReturnByRMA(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MISSING_TENANT_ID", "message": "X-Tenant-ID header is required"})
		return
	}

	ret, err := h.returnService.GetReturnByRMA(c.Request.Context(), c.Param("rma"))
	if err != nil {
		respondError(c, err)
		return
	}
	if ret.TenantID != tenantID {
		c.JSON(http.StatusNotFound, gin.H{"error": "RETURN_NOT_FOUND"})
		return
	}

	c.JSON(http.StatusOK, ret)
}

// ListReturns lists the tenant's returns with optional status/reason filters
func (h *ReturnHandlers) ListReturns(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MISSING_TENANT_ID", "message": "X-Tenant-ID header is required"})
		return
	}

	filter := repository.ReturnFilter{
		TenantID: tenantID,
		Status:   models.ReturnStatus(c.Query("status")),
		Reason:   models.ReturnReason(c.Query("reason")),
	}
	if raw := c.Query("orderId"); raw != "" {
		orderID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_ORDER_ID", "message": "orderId must be a UUID"})
			return
		}
		filter.OrderID = &orderID
	}
	if raw := c.Query("customerId"); raw != "" {
		customerID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_CUSTOMER_ID", "message": "customerId must be a UUID"})
			return
		}
		filter.CustomerID = &customerID
	}

	returns, err := h.returnService.ListReturns(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"returns": returns, "total": len(returns)})
}

// ApproveReturn approves a requested return
func (h *ReturnHandlers) ApproveReturn(c *gin.Context) {
	h.transition(c, "approve", func(ctx context.Context, id uuid.UUID) (*models.Return, error) {
		return h.returnService.Approve(ctx, id, actorID(c))
	})
}

// RejectReturn rejects a requested return; a reason is required
func (h *ReturnHandlers) RejectReturn(c *gin.Context) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	h.transition(c, "reject", func(ctx context.Context, id uuid.UUID) (*models.Return, error) {
		return h.returnService.Reject(ctx, id, body.Reason, actorID(c))
	})
}

// CancelReturn cancels a return before items are received
func (h *ReturnHandlers) CancelReturn(c *gin.Context) {
	var body struct {
		Reason string `json:"reason"`
	}
	// Body is optional for cancellation
	_ = c.ShouldBindJSON(&body)

	h.transition(c, "cancel", func(ctx context.Context, id uuid.UUID) (*models.Return, error) {
		return h.returnService.Cancel(ctx, id, body.Reason, actorID(c))
	})
}

// MarkReceived records the carrier-confirmed receipt of returned items
func (h *ReturnHandlers) MarkReceived(c *gin.Context) {
	var body struct {
		CarrierConfirmed bool `json:"carrierConfirmed"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	h.transition(c, "mark_received", func(ctx context.Context, id uuid.UUID) (*models.Return, error) {
		return h.returnService.MarkReceived(ctx, id, body.CarrierConfirmed, actorID(c))
	})
}

// GenerateShippingLabel creates (or re-reads) the prepaid return label
func (h *ReturnHandlers) GenerateShippingLabel(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MISSING_TENANT_ID", "message": "X-Tenant-ID header is required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_RETURN_ID", "message": "return ID must be a UUID"})
		return
	}

	ret, err := h.returnService.GetReturn(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if ret.TenantID != tenantID {
		c.JSON(http.StatusNotFound, gin.H{"error": "RETURN_NOT_FOUND"})
		return
	}

	label, err := h.returnService.GenerateShippingLabel(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, label)
}

// ProcessRefund settles a received return, optionally with an admin override amount
func (h *ReturnHandlers) ProcessRefund(c *gin.Context) {
	var body struct {
		OverrideAmount *float64 `json:"overrideAmount"`
	}
	// Body is optional; absence means the calculator decides the amount
	_ = c.ShouldBindJSON(&body)

	var override *decimal.Decimal
	if body.OverrideAmount != nil {
		d := decimal.NewFromFloat(*body.OverrideAmount)
		override = &d
	}

	h.transition(c, "process_refund", func(ctx context.Context, id uuid.UUID) (*models.Return, error) {
		return h.returnService.ProcessRefund(ctx, id, override, actorID(c))
	})
}

// GetReturnStats returns aggregated stats for a lookback window (7d/30d/90d/1y)
func (h *ReturnHandlers) GetReturnStats(c *gin.Context) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MISSING_TENANT_ID", "message": "X-Tenant-ID header is required"})
		return
	}

	window := services.StatsWindow(c.DefaultQuery("window", string(services.StatsWindow30Days)))
	stats, err := h.returnService.GetReturnStats(c.Request.Context(), tenantID, window)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// transition runs a status-changing intent with tenant checks and audit logging
func (h *ReturnHandlers) transition(c *gin.Context, intent string, fn func(ctx context.Context, id uuid.UUID) (*models.Return, error)) {
	tenantID, ok := getTenantID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MISSING_TENANT_ID", "message": "X-Tenant-ID header is required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_RETURN_ID", "message": "return ID must be a UUID"})
		return
	}

	existing, err := h.returnService.GetReturn(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if existing.TenantID != tenantID {
		c.JSON(http.StatusNotFound, gin.H{"error": "RETURN_NOT_FOUND"})
		return
	}

	audit := services.WithAudit(h.logger, intent, c.GetHeader("X-User-ID"))
	ret, err := audit(func(ctx context.Context) (*models.Return, error) {
		return fn(ctx, id)
	})(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ret)
}
