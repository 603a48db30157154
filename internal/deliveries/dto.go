package deliveries

import (
	"github.com/google/uuid"

	"github.com/farmgatehq/farmgate-backend/pkg/enums"
	"github.com/farmgatehq/farmgate-backend/pkg/types"
)

// AssignInput pairs an order with a logistics provider.
type AssignInput struct {
	OrderID    uuid.UUID
	ProviderID uuid.UUID
	Actor      types.Actor
}

// UpdateStatusInput carries a provider's progress report for a delivery.
type UpdateStatusInput struct {
	OrderID  uuid.UUID
	Actor    types.Actor
	Status   enums.DeliveryStatus
	Location *string
	Note     *string
}

// RateInput records a buyer's score for a completed delivery.
type RateInput struct {
	OrderID uuid.UUID
	Actor   types.Actor
	Score   int
}

// RepairReport summarizes one pass over partially applied assignments.
type RepairReport struct {
	Repaired int
	Flagged  int
}
