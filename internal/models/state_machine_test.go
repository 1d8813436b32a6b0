package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransitionReturnStatus_HappyPath(t *testing.T) {
	assert.True(t, CanTransitionReturnStatus(ReturnStatusRequested, ReturnStatusApproved))
	assert.True(t, CanTransitionReturnStatus(ReturnStatusApproved, ReturnStatusReceived))
	assert.True(t, CanTransitionReturnStatus(ReturnStatusReceived, ReturnStatusProcessingRefund))
	assert.True(t, CanTransitionReturnStatus(ReturnStatusProcessingRefund, ReturnStatusRefunded))
}

func TestCanTransitionReturnStatus_RejectAndCancel(t *testing.T) {
	assert.True(t, CanTransitionReturnStatus(ReturnStatusRequested, ReturnStatusRejected))
	assert.True(t, CanTransitionReturnStatus(ReturnStatusRequested, ReturnStatusCancelled))
	assert.True(t, CanTransitionReturnStatus(ReturnStatusApproved, ReturnStatusCancelled))

	// Cancellation is closed off once the warehouse has the items
	assert.False(t, CanTransitionReturnStatus(ReturnStatusReceived, ReturnStatusCancelled))
	// Rejection only happens at review time
	assert.False(t, CanTransitionReturnStatus(ReturnStatusApproved, ReturnStatusRejected))
}

func TestCanTransitionReturnStatus_NoSkipping(t *testing.T) {
	assert.False(t, CanTransitionReturnStatus(ReturnStatusRequested, ReturnStatusReceived))
	assert.False(t, CanTransitionReturnStatus(ReturnStatusRequested, ReturnStatusRefunded))
	assert.False(t, CanTransitionReturnStatus(ReturnStatusApproved, ReturnStatusRefunded))
	assert.False(t, CanTransitionReturnStatus(ReturnStatusReceived, ReturnStatusRefunded))
}

func TestPaymentFailureFallback(t *testing.T) {
	assert.True(t, CanTransitionReturnStatus(ReturnStatusProcessingRefund, ReturnStatusReceived))
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	terminals := []ReturnStatus{ReturnStatusRefunded, ReturnStatusRejected, ReturnStatusCancelled}
	all := []ReturnStatus{
		ReturnStatusRequested, ReturnStatusApproved, ReturnStatusRejected,
		ReturnStatusReceived, ReturnStatusProcessingRefund, ReturnStatusRefunded,
		ReturnStatusCancelled,
	}

	for _, terminal := range terminals {
		assert.True(t, IsTerminalReturnStatus(terminal))
		assert.Empty(t, GetNextValidReturnStatuses(terminal))
		for _, target := range all {
			assert.False(t, CanTransitionReturnStatus(terminal, target),
				"terminal status %s must not transition to %s", terminal, target)
		}
	}
}

func TestValidateReturnStatusTransition(t *testing.T) {
	assert.NoError(t, ValidateReturnStatusTransition(ReturnStatusRequested, ReturnStatusApproved))

	err := ValidateReturnStatusTransition(ReturnStatusRefunded, ReturnStatusRequested)
	assert.Error(t, err)

	var illegalErr *IllegalTransitionError
	assert.ErrorAs(t, err, &illegalErr)
	assert.Equal(t, ReturnStatusRefunded, illegalErr.From)
	assert.Equal(t, ReturnStatusRequested, illegalErr.To)
}

func TestDecide_IllegalTransition(t *testing.T) {
	ret := &Return{Status: ReturnStatusRequested}

	_, err := Decide(ret, Transition{Target: ReturnStatusRefunded})

	var illegalErr *IllegalTransitionError
	assert.ErrorAs(t, err, &illegalErr)
}

func TestDecide_RejectRequiresReason(t *testing.T) {
	ret := &Return{Status: ReturnStatusRequested}

	_, err := Decide(ret, Transition{Target: ReturnStatusRejected})
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	result, err := Decide(ret, Transition{Target: ReturnStatusRejected, Reason: "outside return window"})
	assert.NoError(t, err)
	assert.Equal(t, ReturnStatusRejected, result.NewStatus)
	assert.Equal(t, []Effect{SendNotificationEffect{Event: NotificationReturnRejected}}, result.Effects)
}

func TestDecide_ReceivedRequiresCarrierConfirmation(t *testing.T) {
	ret := &Return{Status: ReturnStatusApproved}

	_, err := Decide(ret, Transition{Target: ReturnStatusReceived})
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	result, err := Decide(ret, Transition{Target: ReturnStatusReceived, CarrierConfirmed: true})
	assert.NoError(t, err)
	assert.Equal(t, ReturnStatusReceived, result.NewStatus)
	assert.Empty(t, result.Effects)
}

func TestDecide_RefundFallbackNeedsNoFreshConfirmation(t *testing.T) {
	ret := &Return{Status: ReturnStatusProcessingRefund}

	result, err := Decide(ret, Transition{Target: ReturnStatusReceived})

	assert.NoError(t, err)
	assert.Equal(t, ReturnStatusReceived, result.NewStatus)
}

func TestDecide_ProcessingRefundCarriesAmount(t *testing.T) {
	ret := &Return{Status: ReturnStatusReceived}
	amount := decimal.NewFromFloat(45.00)

	result, err := Decide(ret, Transition{Target: ReturnStatusProcessingRefund, RefundAmount: amount})

	assert.NoError(t, err)
	assert.Equal(t, ReturnStatusProcessingRefund, result.NewStatus)
	assert.Len(t, result.Effects, 1)
	refund, ok := result.Effects[0].(RequestRefundEffect)
	assert.True(t, ok)
	assert.True(t, refund.Amount.Equal(amount))
}

func TestDecide_NegativeRefundAmount(t *testing.T) {
	ret := &Return{Status: ReturnStatusReceived}

	_, err := Decide(ret, Transition{
		Target:       ReturnStatusProcessingRefund,
		RefundAmount: decimal.NewFromFloat(-1.00),
	})

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestDecide_RefundedSendsNotification(t *testing.T) {
	ret := &Return{Status: ReturnStatusProcessingRefund}

	result, err := Decide(ret, Transition{Target: ReturnStatusRefunded})

	assert.NoError(t, err)
	assert.Equal(t, []Effect{SendNotificationEffect{Event: NotificationReturnRefunded}}, result.Effects)
}

func TestDecide_DoesNotMutateReturn(t *testing.T) {
	ret := &Return{Status: ReturnStatusRequested}

	_, err := Decide(ret, Transition{Target: ReturnStatusApproved})

	assert.NoError(t, err)
	assert.Equal(t, ReturnStatusRequested, ret.Status)
}
