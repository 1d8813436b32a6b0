package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"returns-service/internal/clients"
	"returns-service/internal/models"
	"returns-service/internal/repository"
)

// ReturnService orchestrates return lifecycle transitions: it loads the
// aggregate, asks the state machine whether the transition is legal,
// executes required collaborator calls and persists the outcome under an
// optimistic version check. External refund and label requests happen
// at most once per transition attempt.
type ReturnService struct {
	store         repository.ReturnStore
	calculator    *RefundCalculator
	orderClient   clients.OrderClient
	paymentClient clients.PaymentClient
	shippingClient clients.ShippingClient
	notifier      clients.NotificationClient
	statsCache    *repository.StatsCache
	logger        *logrus.Logger
	callTimeout   time.Duration
	observer      TransitionObserver
}

// TransitionObserver counts applied status transitions, typically backed by
// Prometheus. A nil observer is allowed.
type TransitionObserver interface {
	ObserveTransition(toStatus string)
}

func NewReturnService(
	store repository.ReturnStore,
	calculator *RefundCalculator,
	orderClient clients.OrderClient,
	paymentClient clients.PaymentClient,
	shippingClient clients.ShippingClient,
	notifier clients.NotificationClient,
	statsCache *repository.StatsCache,
	logger *logrus.Logger,
	callTimeout time.Duration,
) *ReturnService {
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	return &ReturnService{
		store:          store,
		calculator:     calculator,
		orderClient:    orderClient,
		paymentClient:  paymentClient,
		shippingClient: shippingClient,
		notifier:       notifier,
		statsCache:     statsCache,
		logger:         logger,
		callTimeout:    callTimeout,
	}
}

// SetTransitionObserver wires status-transition metrics into the orchestrator
func (s *ReturnService) SetTransitionObserver(observer TransitionObserver) {
	s.observer = observer
}

func (s *ReturnService) observeTransition(status models.ReturnStatus) {
	if s.observer != nil {
		s.observer.ObserveTransition(string(status))
	}
}

// CreateReturn validates the requested items against the order's fulfilled
// line items and persists a new return in REQUESTED.
func (s *ReturnService) CreateReturn(ctx context.Context, req *CreateReturnRequest) (*models.Return, error) {
	if !req.Reason.IsValid() {
		return nil, models.NewValidationError("reason", fmt.Sprintf("unknown return reason %q", req.Reason))
	}
	if len(req.Items) == 0 {
		return nil, models.NewValidationError("items", "at least one item must be selected for return")
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	order, err := s.orderClient.GetOrderItems(callCtx, req.OrderID, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("order lookup failed: %w", err)
	}

	orderItems := make(map[uuid.UUID]clients.OrderItem, len(order.Items))
	for _, item := range order.Items {
		orderItems[item.ID] = item
	}

	// Quantities already tied up in live or settled returns for this order
	// reduce what is still returnable.
	returned, err := s.returnedQuantities(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	ret := &models.Return{
		TenantID:      req.TenantID,
		OrderID:       req.OrderID,
		CustomerID:    order.CustomerID,
		CustomerEmail: order.CustomerEmail,
		Status:        models.ReturnStatusRequested,
		Reason:        req.Reason,
		Comment:       req.Comment,
		Items:         make([]models.ReturnItem, 0, len(req.Items)),
	}
	if req.CustomerID != uuid.Nil {
		ret.CustomerID = req.CustomerID
	}

	for _, itemReq := range req.Items {
		orderItem, ok := orderItems[itemReq.OrderItemID]
		if !ok {
			return nil, models.NewValidationError("items", fmt.Sprintf("order item %s not found", itemReq.OrderItemID))
		}
		remaining := orderItem.Quantity - returned[itemReq.OrderItemID]
		if itemReq.Quantity <= 0 || itemReq.Quantity > remaining {
			return nil, models.NewValidationError("items",
				fmt.Sprintf("invalid quantity %d for %s (returnable: %d)", itemReq.Quantity, orderItem.ProductName, remaining))
		}

		ret.Items = append(ret.Items, models.ReturnItem{
			OrderItemID: itemReq.OrderItemID,
			ProductID:   orderItem.ProductID,
			ProductName: orderItem.ProductName,
			SKU:         orderItem.SKU,
			Quantity:    itemReq.Quantity,
			UnitPrice:   orderItem.UnitPrice,
			Reason:      itemReq.Reason,
			ItemNotes:   itemReq.Notes,
		})
	}

	if err := s.store.Create(ctx, ret); err != nil {
		return nil, fmt.Errorf("failed to create return: %w", err)
	}

	s.notify(ctx, ret, models.NotificationReturnRequested)

	return ret, nil
}

// Approve moves a REQUESTED return to APPROVED
func (s *ReturnService) Approve(ctx context.Context, returnID uuid.UUID, approvedBy *uuid.UUID) (*models.Return, error) {
	ret, err := s.store.GetByID(ctx, returnID)
	if err != nil {
		return nil, err
	}
	return s.applyTransition(ctx, ret,
		models.Transition{Target: models.ReturnStatusApproved},
		"Return request approved", approvedBy)
}

// Reject moves a REQUESTED return to REJECTED. A reason is required.
func (s *ReturnService) Reject(ctx context.Context, returnID uuid.UUID, reason string, rejectedBy *uuid.UUID) (*models.Return, error) {
	ret, err := s.store.GetByID(ctx, returnID)
	if err != nil {
		return nil, err
	}
	ret.RejectionReason = reason
	return s.applyTransition(ctx, ret,
		models.Transition{Target: models.ReturnStatusRejected, Reason: reason},
		"Return request rejected", rejectedBy)
}

// Cancel is the customer-initiated cancellation.
// Disallowed once items are received.
func (s *ReturnService) Cancel(ctx context.Context, returnID uuid.UUID, reason string, userID *uuid.UUID) (*models.Return, error) {
	ret, err := s.store.GetByID(ctx, returnID)
	if err != nil {
		return nil, err
	}
	message := "Return cancelled"
	if reason != "" {
		message = fmt.Sprintf("Return cancelled: %s", reason)
	}
	return s.applyTransition(ctx, ret,
		models.Transition{Target: models.ReturnStatusCancelled},
		message, userID)
}

// MarkReceived records the carrier-confirmed receipt of returned items
func (s *ReturnService) MarkReceived(ctx context.Context, returnID uuid.UUID, carrierConfirmed bool, userID *uuid.UUID) (*models.Return, error) {
	ret, err := s.store.GetByID(ctx, returnID)
	if err != nil {
		return nil, err
	}
	return s.applyTransition(ctx, ret,
		models.Transition{Target: models.ReturnStatusReceived, CarrierConfirmed: carrierConfirmed},
		"Items received at warehouse", userID)
}

// GenerateShippingLabel creates a prepaid return label for an APPROVED
// return. Idempotent: when a tracking number is already stored the existing
// label is returned without calling the shipping service again.
func (s *ReturnService) GenerateShippingLabel(ctx context.Context, returnID uuid.UUID) (*clients.ReturnLabelResponse, error) {
	ret, err := s.store.GetByID(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if ret.Status != models.ReturnStatusApproved {
		return nil, models.NewValidationError("status",
			fmt.Sprintf("shipping label can only be generated for approved returns (current status: %s)", ret.Status))
	}
	if ret.HasShippingLabel() {
		return &clients.ReturnLabelResponse{
			LabelURL:       ret.ShippingLabelURL,
			TrackingNumber: ret.TrackingNumber,
			Carrier:        ret.ShippingCarrier,
		}, nil
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	label, err := s.shippingClient.CreateReturnLabel(callCtx, &clients.CreateReturnLabelRequest{
		TenantID:  ret.TenantID,
		OrderID:   ret.OrderID.String(),
		RMANumber: ret.RMANumber,
	})
	if err != nil {
		// Return stays APPROVED; the caller may retry.
		return nil, err
	}

	ret.TrackingNumber = label.TrackingNumber
	ret.ShippingCarrier = label.Carrier
	ret.ShippingLabelURL = label.LabelURL
	entry := ret.CreateTimelineEntry(ret.Status,
		fmt.Sprintf("Return label generated - Carrier: %s, Tracking: %s", label.Carrier, label.TrackingNumber), nil)
	if err := s.store.Save(ctx, ret, ret.Version, entry); err != nil {
		return nil, err
	}

	return label, nil
}

// ProcessRefund settles a RECEIVED return: it computes the refund, claims
// the PROCESSING_REFUND state, requests the payment refund and commits
// REFUNDED. Payment failures revert the return to RECEIVED and surface a
// retryable error.
func (s *ReturnService) ProcessRefund(ctx context.Context, returnID uuid.UUID, override *decimal.Decimal, processedBy *uuid.UUID) (*models.Return, error) {
	ret, err := s.store.GetByID(ctx, returnID)
	if err != nil {
		return nil, err
	}

	amount, err := s.calculator.Calculate(ret.Items, ret.Reason, override)
	if err != nil {
		return nil, err
	}

	result, err := models.Decide(ret, models.Transition{
		Target:       models.ReturnStatusProcessingRefund,
		RefundAmount: amount,
	})
	if err != nil {
		return nil, err
	}

	// Claiming PROCESSING_REFUND under the version check is what makes the
	// external refund call at-most-once: a concurrent attempt loses the
	// version race before any payment traffic happens.
	claimedVersion := ret.Version
	now := time.Now()
	ret.Status = result.NewStatus
	ret.ProcessedAt = &now
	claimEntry := ret.CreateTimelineEntry(result.NewStatus,
		fmt.Sprintf("Refund of %s requested", amount.StringFixed(2)), processedBy)
	if err := s.store.Save(ctx, ret, claimedVersion, claimEntry); err != nil {
		return nil, err
	}
	s.observeTransition(models.ReturnStatusProcessingRefund)

	refund, err := s.executeRefund(ctx, ret, result.Effects)
	if err != nil {
		// Revert to RECEIVED so the caller can retry with the same inputs.
		s.revertToReceived(ctx, ret, processedBy, err)
		return nil, err
	}

	refundAmount := amount.InexactFloat64()
	completed := time.Now()
	ret.Status = models.ReturnStatusRefunded
	ret.RefundAmount = &refundAmount
	ret.RefundID = &refund.ID
	ret.CompletedAt = &completed
	commitEntry := ret.CreateTimelineEntry(models.ReturnStatusRefunded,
		fmt.Sprintf("Refund of %s settled (refund %s)", amount.StringFixed(2), refund.ID), processedBy)
	if err := s.store.Save(ctx, ret, ret.Version, commitEntry); err != nil {
		return nil, err
	}
	s.observeTransition(models.ReturnStatusRefunded)

	s.notify(ctx, ret, models.NotificationReturnRefunded)

	return ret, nil
}

// GetReturn retrieves a return by ID
func (s *ReturnService) GetReturn(ctx context.Context, id uuid.UUID) (*models.Return, error) {
	return s.store.GetByID(ctx, id)
}

// GetReturnByRMA retrieves a return by RMA number
func (s *ReturnService) GetReturnByRMA(ctx context.Context, rmaNumber string) (*models.Return, error) {
	return s.store.GetByRMANumber(ctx, rmaNumber)
}

// ListReturns lists returns matching the filter
func (s *ReturnService) ListReturns(ctx context.Context, filter repository.ReturnFilter) ([]models.Return, error) {
	return s.store.Query(ctx, filter)
}

// applyTransition runs the state machine, persists the new status with its
// timeline entry under the loaded version, then executes notification
// effects. Required effects that must precede the commit (refund, label) are
// handled by their dedicated flows.
func (s *ReturnService) applyTransition(ctx context.Context, ret *models.Return, t models.Transition, message string, userID *uuid.UUID) (*models.Return, error) {
	result, err := models.Decide(ret, t)
	if err != nil {
		return nil, err
	}

	expectedVersion := ret.Version
	ret.Status = result.NewStatus
	entry := ret.CreateTimelineEntry(result.NewStatus, message, userID)
	if err := s.store.Save(ctx, ret, expectedVersion, entry); err != nil {
		return nil, err
	}
	s.observeTransition(result.NewStatus)

	for _, effect := range result.Effects {
		if n, ok := effect.(models.SendNotificationEffect); ok {
			s.notify(ctx, ret, n.Event)
		}
	}

	return ret, nil
}

// executeRefund performs the RequestRefundEffect produced by the state machine
func (s *ReturnService) executeRefund(ctx context.Context, ret *models.Return, effects []models.Effect) (*clients.RefundResponse, error) {
	var refundEffect *models.RequestRefundEffect
	for _, effect := range effects {
		if e, ok := effect.(models.RequestRefundEffect); ok {
			refundEffect = &e
			break
		}
	}
	if refundEffect == nil {
		return nil, fmt.Errorf("transition produced no refund effect")
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	paymentRef, err := s.orderClient.GetPaymentReference(callCtx, ret.OrderID, ret.TenantID)
	if err != nil {
		return nil, fmt.Errorf("payment reference lookup failed: %w", err)
	}

	memo := fmt.Sprintf("Return refund for RMA %s (reason: %s)", ret.RMANumber, ret.Reason)
	refundCtx, cancelRefund := s.withTimeout(ctx)
	defer cancelRefund()
	return s.paymentClient.Refund(refundCtx, paymentRef.PaymentRef, refundEffect.Amount.InexactFloat64(), memo, ret.TenantID)
}

// revertToReceived rolls a failed refund attempt back to RECEIVED
func (s *ReturnService) revertToReceived(ctx context.Context, ret *models.Return, userID *uuid.UUID, cause error) {
	ret.Status = models.ReturnStatusReceived
	entry := ret.CreateTimelineEntry(models.ReturnStatusReceived,
		fmt.Sprintf("Refund attempt failed: %v", cause), userID)
	if err := s.store.Save(ctx, ret, ret.Version, entry); err != nil {
		s.logger.WithError(err).WithField("return_id", ret.ID).
			Error("failed to revert return to RECEIVED after refund failure")
	}
}

// returnedQuantities sums quantities per order item across this order's
// returns that still hold or already consumed stock
func (s *ReturnService) returnedQuantities(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int, error) {
	existing, err := s.store.Query(ctx, repository.ReturnFilter{OrderID: &orderID})
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing returns: %w", err)
	}

	returned := make(map[uuid.UUID]int)
	for _, prior := range existing {
		if prior.Status == models.ReturnStatusCancelled || prior.Status == models.ReturnStatusRejected {
			continue
		}
		for _, item := range prior.Items {
			returned[item.OrderItemID] += item.Quantity
		}
	}
	return returned, nil
}

// notify sends a customer notification, fire-and-forget. Failures are
// logged, never propagated: a notification must not fail a transition.
func (s *ReturnService) notify(ctx context.Context, ret *models.Return, event models.NotificationEvent) {
	if s.notifier == nil || ret.CustomerEmail == "" {
		return
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.notifier.Notify(callCtx, ret.CustomerEmail, event, map[string]interface{}{
		"rmaNumber": ret.RMANumber,
		"orderId":   ret.OrderID.String(),
		"status":    ret.Status.DisplayName(),
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"return_id": ret.ID,
			"event":     event,
		}).Warn("failed to send return notification")
	}
}

func (s *ReturnService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.callTimeout)
}

// DTOs

type CreateReturnRequest struct {
	TenantID   string              `json:"tenantId"`
	OrderID    uuid.UUID           `json:"orderId"`
	CustomerID uuid.UUID           `json:"customerId"`
	Reason     models.ReturnReason `json:"reason"`
	Comment    string              `json:"comment"`
	Items      []ReturnItemRequest `json:"items"`
}

type ReturnItemRequest struct {
	OrderItemID uuid.UUID           `json:"orderItemId"`
	Quantity    int                 `json:"quantity"`
	Reason      models.ReturnReason `json:"reason"`
	Notes       string              `json:"notes"`
}
