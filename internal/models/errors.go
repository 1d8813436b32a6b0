package models

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the store and orchestrator.
var (
	// ErrReturnNotFound is returned when no return exists for the given ID
	ErrReturnNotFound = errors.New("return not found")

	// ErrConcurrentModification is returned when a save races with another
	// writer. The caller should re-read and retry.
	ErrConcurrentModification = errors.New("return was modified concurrently")

	// ErrInvalidRefundInput is returned by the refund calculator for empty
	// item sets, non-positive quantities or negative prices.
	ErrInvalidRefundInput = errors.New("invalid refund input")
)

// ValidationError indicates a request was rejected before any state change
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for a field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IllegalTransitionError indicates a requested status transition is not an
// edge of the return state graph. The return is left unchanged.
type IllegalTransitionError struct {
	From ReturnStatus
	To   ReturnStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal return status transition from %s to %s", e.From, e.To)
}

// PaymentDeclinedError indicates the payment provider declined the refund.
// The return reverts to RECEIVED; the caller may retry.
type PaymentDeclinedError struct {
	PaymentRef string
	Detail     string
}

func (e *PaymentDeclinedError) Error() string {
	return fmt.Sprintf("payment declined for %s: %s", e.PaymentRef, e.Detail)
}

// PaymentTimeoutError indicates the payment provider did not answer within
// the timeout budget. The return reverts to RECEIVED; the caller may retry.
type PaymentTimeoutError struct {
	PaymentRef string
}

func (e *PaymentTimeoutError) Error() string {
	return fmt.Sprintf("payment refund timed out for %s", e.PaymentRef)
}

// ShippingServiceError indicates label generation failed. The return stays
// APPROVED; the caller may retry.
type ShippingServiceError struct {
	Detail string
}

func (e *ShippingServiceError) Error() string {
	return fmt.Sprintf("shipping service error: %s", e.Detail)
}

// IsRetryable reports whether the caller can retry the failed operation
// without changing its inputs.
func IsRetryable(err error) bool {
	var pt *PaymentTimeoutError
	var pd *PaymentDeclinedError
	var sh *ShippingServiceError
	return errors.Is(err, ErrConcurrentModification) ||
		errors.As(err, &pt) || errors.As(err, &pd) || errors.As(err, &sh)
}
