package models

import "github.com/shopspring/decimal"

// ValidReturnTransitions defines valid state transitions for ReturnStatus
// Flow: REQUESTED → APPROVED → RECEIVED → PROCESSING_REFUND → REFUNDED
// REJECTED only from REQUESTED; CANCELLED only before items are received.
// PROCESSING_REFUND falls back to RECEIVED when the payment provider fails.
var ValidReturnTransitions = map[ReturnStatus][]ReturnStatus{
	ReturnStatusRequested:        {ReturnStatusApproved, ReturnStatusRejected, ReturnStatusCancelled},
	ReturnStatusApproved:         {ReturnStatusReceived, ReturnStatusCancelled},
	ReturnStatusReceived:         {ReturnStatusProcessingRefund},
	ReturnStatusProcessingRefund: {ReturnStatusRefunded, ReturnStatusReceived},
	ReturnStatusRefunded:         {}, // Terminal state
	ReturnStatusRejected:         {}, // Terminal state
	ReturnStatusCancelled:        {}, // Terminal state
}

// NotificationEvent identifies the customer notification a transition requires
type NotificationEvent string

const (
	NotificationReturnRequested NotificationEvent = "return_requested"
	NotificationReturnRejected  NotificationEvent = "return_rejected"
	NotificationReturnRefunded  NotificationEvent = "return_refunded"
)

// Effect is a side-effecting action required by a transition. The state
// machine decides effects; the orchestrator executes them. Keeping the two
// apart lets legality rules be tested without mocking external systems.
type Effect interface {
	EffectName() string
}

// RequestRefundEffect asks the orchestrator to request a payment refund
type RequestRefundEffect struct {
	Amount decimal.Decimal
}

func (RequestRefundEffect) EffectName() string { return "request_refund" }

// GenerateShippingLabelEffect asks the orchestrator to create a return label
type GenerateShippingLabelEffect struct{}

func (GenerateShippingLabelEffect) EffectName() string { return "generate_shipping_label" }

// SendNotificationEffect asks the orchestrator to notify the customer
type SendNotificationEffect struct {
	Event NotificationEvent
}

func (SendNotificationEffect) EffectName() string { return "send_notification" }

// Transition is a request to move a return to a target status, together with
// the caller-supplied evidence the guards need.
type Transition struct {
	Target ReturnStatus
	// Reason is required when the target is REJECTED
	Reason string
	// CarrierConfirmed is the receipt evidence required for RECEIVED
	CarrierConfirmed bool
	// RefundAmount is the computed refund carried into PROCESSING_REFUND
	RefundAmount decimal.Decimal
}

// TransitionResult is the outcome of a legal transition: the status to
// persist plus the effects the orchestrator must execute.
type TransitionResult struct {
	NewStatus ReturnStatus
	Effects   []Effect
}

// Decide validates a requested transition against the current return state.
// It performs no I/O and never mutates the return.
func Decide(r *Return, t Transition) (TransitionResult, error) {
	if !CanTransitionReturnStatus(r.Status, t.Target) {
		return TransitionResult{}, &IllegalTransitionError{From: r.Status, To: t.Target}
	}

	result := TransitionResult{NewStatus: t.Target}

	switch t.Target {
	case ReturnStatusRejected:
		if t.Reason == "" {
			return TransitionResult{}, NewValidationError("reason", "a rejection reason is required")
		}
		result.Effects = append(result.Effects, SendNotificationEffect{Event: NotificationReturnRejected})

	case ReturnStatusReceived:
		// Falling back from PROCESSING_REFUND needs no fresh carrier evidence.
		if r.Status == ReturnStatusApproved && !t.CarrierConfirmed {
			return TransitionResult{}, NewValidationError("carrierConfirmed", "carrier receipt confirmation is required")
		}

	case ReturnStatusProcessingRefund:
		if t.RefundAmount.IsNegative() {
			return TransitionResult{}, NewValidationError("refundAmount", "refund amount must not be negative")
		}
		result.Effects = append(result.Effects, RequestRefundEffect{Amount: t.RefundAmount})

	case ReturnStatusRefunded:
		result.Effects = append(result.Effects, SendNotificationEffect{Event: NotificationReturnRefunded})
	}

	return result, nil
}

// CanTransitionReturnStatus checks if a transition from one return status to another is valid
func CanTransitionReturnStatus(from, to ReturnStatus) bool {
	validTransitions, exists := ValidReturnTransitions[from]
	if !exists {
		return false
	}
	for _, validTo := range validTransitions {
		if validTo == to {
			return true
		}
	}
	return false
}

// ValidateReturnStatusTransition returns an error if the transition is invalid
func ValidateReturnStatusTransition(from, to ReturnStatus) error {
	if !CanTransitionReturnStatus(from, to) {
		return &IllegalTransitionError{From: from, To: to}
	}
	return nil
}

// GetNextValidReturnStatuses returns the list of valid next statuses for a return
func GetNextValidReturnStatuses(current ReturnStatus) []ReturnStatus {
	return ValidReturnTransitions[current]
}

// IsTerminalReturnStatus checks if the return status is a terminal state
func IsTerminalReturnStatus(status ReturnStatus) bool {
	return len(ValidReturnTransitions[status]) == 0
}

// DisplayName returns a human-readable name for the return status
func (s ReturnStatus) DisplayName() string {
	switch s {
	case ReturnStatusRequested:
		return "Requested"
	case ReturnStatusApproved:
		return "Approved"
	case ReturnStatusRejected:
		return "Rejected"
	case ReturnStatusReceived:
		return "Received"
	case ReturnStatusProcessingRefund:
		return "Processing Refund"
	case ReturnStatusRefunded:
		return "Refunded"
	case ReturnStatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}
