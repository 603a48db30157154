package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("ready_for_pickup")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusReadyForPickup, status)

	_, err = ParseOrderStatus("shipped")
	assert.Error(t, err)
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.True(t, OrderStatusCompleted.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusDisputed.IsTerminal())
	assert.False(t, OrderStatusPending.IsTerminal())
}

func TestPaymentStatusTerminal(t *testing.T) {
	assert.False(t, PaymentStatusPending.IsTerminal())
	for _, status := range []PaymentStatus{
		PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusAbandoned,
		PaymentStatusCancelled, PaymentStatusRefunded,
	} {
		assert.True(t, status.IsTerminal(), status)
	}
	assert.False(t, PaymentStatus("bogus").IsTerminal())
}

func TestGatewayEventRecognition(t *testing.T) {
	assert.True(t, GatewayEventChargeSuccess.IsRecognized())
	assert.True(t, GatewayEventTransferFailed.IsRecognized())
	assert.False(t, GatewayEventType("invoice.created").IsRecognized())
}
