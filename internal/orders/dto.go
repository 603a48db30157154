package orders

import (
	"github.com/google/uuid"

	"github.com/farmgatehq/farmgate-backend/pkg/enums"
	"github.com/farmgatehq/farmgate-backend/pkg/types"
)

// CreateOrderItem is one requested line of a new order.
type CreateOrderItem struct {
	ProductID uuid.UUID
	Qty       int
}

// CreateOrderInput carries everything needed to place an order.
type CreateOrderInput struct {
	BuyerID         uuid.UUID
	PaymentMethod   enums.PaymentMethod
	DeliveryMethod  enums.DeliveryMethod
	DeliveryAddress *types.Address
	Items           []CreateOrderItem
}

// TransitionInput carries a requested status change.
type TransitionInput struct {
	OrderID   uuid.UUID
	Actor     types.Actor
	NewStatus enums.OrderStatus
	Note      *string
}

// CancelInput carries an order cancellation request.
type CancelInput struct {
	OrderID uuid.UUID
	Actor   types.Actor
	Note    *string
}

// ReportIssueInput opens a dispute on an order.
type ReportIssueInput struct {
	OrderID uuid.UUID
	Actor   types.Actor
	Reason  string
}
