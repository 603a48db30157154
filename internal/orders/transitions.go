package orders

import "github.com/farmgatehq/farmgate-backend/pkg/enums"

// transitionGraph maps each order status to the statuses reachable from it.
// Disputes are opened through ReportIssue, not TransitionStatus, so the
// delivered->disputed edge only matters for validation of the side entry.
var transitionGraph = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:        {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:      {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing:     {enums.OrderStatusReadyForPickup, enums.OrderStatusCancelled},
	enums.OrderStatusReadyForPickup: {enums.OrderStatusInTransit},
	enums.OrderStatusInTransit:      {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:      {enums.OrderStatusCompleted, enums.OrderStatusDisputed},
	enums.OrderStatusDisputed:       {enums.OrderStatusCompleted, enums.OrderStatusCancelled},
}

// CanTransition reports whether to is reachable from from in one step.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range transitionGraph[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// coordinatorOnly lists statuses that only the delivery flow may set. Buyer,
// farmer and admin transition calls never reach them directly.
var coordinatorOnly = map[enums.OrderStatus]bool{
	enums.OrderStatusInTransit: true,
	enums.OrderStatusDelivered: true,
}

// IsCoordinatorOnly reports whether the status is reserved for the delivery
// flow.
func IsCoordinatorOnly(status enums.OrderStatus) bool {
	return coordinatorOnly[status]
}
