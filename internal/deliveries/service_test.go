package deliveries

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/farmgatehq/farmgate-backend/pkg/db/models"
	"github.com/farmgatehq/farmgate-backend/pkg/enums"
	pkgerrors "github.com/farmgatehq/farmgate-backend/pkg/errors"
	"github.com/farmgatehq/farmgate-backend/pkg/logger"
	"github.com/farmgatehq/farmgate-backend/pkg/types"
)

type stubDeliveriesRepo struct {
	provider    *models.LogisticsProvider
	order       *models.Order
	product     *models.Product
	delivery    *models.Delivery
	activeCount int64

	createdDelivery *models.Delivery
	timeline        []models.DeliveryTimelineEntry
	ratings         []models.ProviderRating
	ratingErr       error
	appliedScores   []int
	counterCalls    []bool
	perfRate        float64
	perfAvg         float64
	bounds          []TimelineBounds
	unlinked        []models.Delivery
	orphans         []models.Order
}

func (s *stubDeliveriesRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubDeliveriesRepo) FindProvider(ctx context.Context, id uuid.UUID) (*models.LogisticsProvider, error) {
	if s.provider == nil || s.provider.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.provider, nil
}

func (s *stubDeliveriesRepo) ListProviders(ctx context.Context, onlyAvailable bool) ([]models.LogisticsProvider, error) {
	if s.provider == nil {
		return nil, nil
	}
	return []models.LogisticsProvider{*s.provider}, nil
}

func (s *stubDeliveriesRepo) CreateProvider(ctx context.Context, provider *models.LogisticsProvider) (*models.LogisticsProvider, error) {
	if provider.ID == uuid.Nil {
		provider.ID = uuid.New()
	}
	s.provider = provider
	return provider, nil
}

func (s *stubDeliveriesRepo) CountActiveByProvider(ctx context.Context, providerID uuid.UUID) (int64, error) {
	return s.activeCount, nil
}

func (s *stubDeliveriesRepo) CreateDelivery(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error) {
	if delivery.ID == uuid.Nil {
		delivery.ID = uuid.New()
	}
	s.createdDelivery = delivery
	return delivery, nil
}

func (s *stubDeliveriesRepo) FindDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	if s.delivery == nil || s.delivery.OrderID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.delivery, nil
}

func (s *stubDeliveriesRepo) UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, from, to enums.DeliveryStatus, deliveredAt *time.Time) (bool, error) {
	if s.delivery == nil || s.delivery.Status != from {
		return false, nil
	}
	s.delivery.Status = to
	s.delivery.DeliveredAt = deliveredAt
	return true, nil
}

func (s *stubDeliveriesRepo) AppendTimeline(ctx context.Context, entry *models.DeliveryTimelineEntry) error {
	s.timeline = append(s.timeline, *entry)
	return nil
}

func (s *stubDeliveriesRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubDeliveriesRepo) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if s.product == nil || s.product.ID != productID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.product, nil
}

func (s *stubDeliveriesRepo) CreateRating(ctx context.Context, rating *models.ProviderRating) error {
	if s.ratingErr != nil {
		return s.ratingErr
	}
	s.ratings = append(s.ratings, *rating)
	return nil
}

func (s *stubDeliveriesRepo) ApplyRating(ctx context.Context, providerID uuid.UUID, score int) error {
	s.appliedScores = append(s.appliedScores, score)
	return nil
}

func (s *stubDeliveriesRepo) IncrementProviderCounters(ctx context.Context, providerID uuid.UUID, successful bool) error {
	s.counterCalls = append(s.counterCalls, successful)
	if s.provider != nil {
		s.provider.TotalDeliveries++
		if successful {
			s.provider.SuccessfulDeliveries++
		}
	}
	return nil
}

func (s *stubDeliveriesRepo) UpdateProviderPerformance(ctx context.Context, providerID uuid.UUID, onTimeRate, averageMinutes float64) error {
	s.perfRate = onTimeRate
	s.perfAvg = averageMinutes
	return nil
}

func (s *stubDeliveriesRepo) ListDeliveredTimelineBounds(ctx context.Context, providerID uuid.UUID) ([]TimelineBounds, error) {
	return s.bounds, nil
}

func (s *stubDeliveriesRepo) ListUnlinkedDeliveries(ctx context.Context, limit int) ([]models.Delivery, error) {
	return s.unlinked, nil
}

func (s *stubDeliveriesRepo) ListOrphanOrderAssignments(ctx context.Context, limit int) ([]models.Order, error) {
	return s.orphans, nil
}

type bridgeApply struct {
	orderID    uuid.UUID
	providerID uuid.UUID
	status     enums.DeliveryStatus
}

type stubBridge struct {
	attached  []bridgeApply
	attachErr error
	applied   []bridgeApply
}

func (s *stubBridge) AttachProvider(ctx context.Context, tx *gorm.DB, orderID, providerID uuid.UUID) error {
	if s.attachErr != nil {
		return s.attachErr
	}
	s.attached = append(s.attached, bridgeApply{orderID: orderID, providerID: providerID})
	return nil
}

func (s *stubBridge) ApplyDeliveryUpdate(ctx context.Context, tx *gorm.DB, orderID, providerID uuid.UUID, status enums.DeliveryStatus, at time.Time) error {
	s.applied = append(s.applied, bridgeApply{orderID: orderID, providerID: providerID, status: status})
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestDeliveriesService(t *testing.T, repo Repository, bridge *stubBridge) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(repo, stubTxRunner{}, bridge, logg)
	require.NoError(t, err)
	return svc
}

func homeDeliveryOrder(farmerID, productID uuid.UUID) *models.Order {
	return &models.Order{
		ID:             uuid.New(),
		BuyerID:        uuid.New(),
		Status:         enums.OrderStatusReadyForPickup,
		PaymentMethod:  enums.PaymentMethodPrepaid,
		TotalAmount:    decimal.NewFromInt(100),
		DeliveryMethod: enums.DeliveryMethodHomeDelivery,
		DeliveryAddress: &types.Address{
			Line1: "14 Market Road",
			City:  "Ibadan",
			State: "Oyo",
		},
		Items: []models.OrderLineItem{
			{ProductID: productID, FarmerID: farmerID, Qty: 3},
		},
	}
}

func TestAssign_createsDeliveryAndLinksOrder(t *testing.T) {
	farmerID := uuid.New()
	productID := uuid.New()
	repo := &stubDeliveriesRepo{
		provider: &models.LogisticsProvider{ID: uuid.New(), Name: "Swift Riders", Active: true, Available: true},
		order:    homeDeliveryOrder(farmerID, productID),
		product: &models.Product{
			ID:           productID,
			FarmerID:     farmerID,
			FarmLocation: &types.Address{Line1: "Green Acres Farm", City: "Oyo"},
		},
		activeCount: 2,
	}
	bridge := &stubBridge{}
	svc := newTestDeliveriesService(t, repo, bridge)

	delivery, err := svc.Assign(context.Background(), AssignInput{
		OrderID:    repo.order.ID,
		ProviderID: repo.provider.ID,
		Actor:      types.Actor{ID: farmerID, Role: enums.ActorRoleFarmer},
	})
	require.NoError(t, err)

	assert.Equal(t, enums.DeliveryStatusAssigned, delivery.Status)
	require.NotNil(t, delivery.Pickup)
	assert.Equal(t, "Green Acres Farm", delivery.Pickup.Line1)
	require.NotNil(t, delivery.Dropoff)
	assert.Equal(t, "14 Market Road", delivery.Dropoff.Line1)

	require.Len(t, bridge.attached, 1)
	assert.Equal(t, repo.order.ID, bridge.attached[0].orderID)
	assert.Equal(t, repo.provider.ID, bridge.attached[0].providerID)
	require.Len(t, repo.timeline, 1)
	assert.Equal(t, enums.DeliveryStatusAssigned, repo.timeline[0].Status)
}

func TestAssign_providerAtCapacity(t *testing.T) {
	farmerID := uuid.New()
	productID := uuid.New()
	repo := &stubDeliveriesRepo{
		provider:    &models.LogisticsProvider{ID: uuid.New(), Name: "Swift Riders", Active: true, Available: true},
		order:       homeDeliveryOrder(farmerID, productID),
		product:     &models.Product{ID: productID, FarmerID: farmerID},
		activeCount: maxActiveDeliveries,
	}
	bridge := &stubBridge{}
	svc := newTestDeliveriesService(t, repo, bridge)

	_, err := svc.Assign(context.Background(), AssignInput{
		OrderID:    repo.order.ID,
		ProviderID: repo.provider.ID,
		Actor:      types.Actor{ID: farmerID, Role: enums.ActorRoleFarmer},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Nil(t, repo.createdDelivery)
	assert.Empty(t, bridge.attached)
}

func TestAssign_unavailableProviderRejected(t *testing.T) {
	farmerID := uuid.New()
	productID := uuid.New()
	repo := &stubDeliveriesRepo{
		provider: &models.LogisticsProvider{ID: uuid.New(), Name: "Idle Riders", Active: true, Available: false},
		order:    homeDeliveryOrder(farmerID, productID),
		product:  &models.Product{ID: productID, FarmerID: farmerID},
	}
	svc := newTestDeliveriesService(t, repo, &stubBridge{})

	_, err := svc.Assign(context.Background(), AssignInput{
		OrderID:    repo.order.ID,
		ProviderID: repo.provider.ID,
		Actor:      types.Actor{ID: farmerID, Role: enums.ActorRoleFarmer},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestAssign_orderNotReadyForPickup(t *testing.T) {
	farmerID := uuid.New()
	productID := uuid.New()
	for _, status := range []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusConfirmed,
		enums.OrderStatusProcessing,
		enums.OrderStatusDelivered,
	} {
		order := homeDeliveryOrder(farmerID, productID)
		order.Status = status
		repo := &stubDeliveriesRepo{
			provider: &models.LogisticsProvider{ID: uuid.New(), Name: "Swift Riders", Active: true, Available: true},
			order:    order,
			product:  &models.Product{ID: productID, FarmerID: farmerID},
		}
		bridge := &stubBridge{}
		svc := newTestDeliveriesService(t, repo, bridge)

		_, err := svc.Assign(context.Background(), AssignInput{
			OrderID:    order.ID,
			ProviderID: repo.provider.ID,
			Actor:      types.Actor{ID: farmerID, Role: enums.ActorRoleFarmer},
		})
		require.Errorf(t, err, "status %s must not accept an assignment", status)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
		assert.Nil(t, repo.createdDelivery)
		assert.Empty(t, bridge.attached)
	}
}

func TestAssign_pickupOrderRejected(t *testing.T) {
	farmerID := uuid.New()
	productID := uuid.New()
	order := homeDeliveryOrder(farmerID, productID)
	order.DeliveryMethod = enums.DeliveryMethodPickup
	repo := &stubDeliveriesRepo{
		provider: &models.LogisticsProvider{ID: uuid.New(), Name: "Swift Riders", Active: true, Available: true},
		order:    order,
		product:  &models.Product{ID: productID, FarmerID: farmerID},
	}
	svc := newTestDeliveriesService(t, repo, &stubBridge{})

	_, err := svc.Assign(context.Background(), AssignInput{
		OrderID:    order.ID,
		ProviderID: repo.provider.ID,
		Actor:      types.Actor{ID: farmerID, Role: enums.ActorRoleFarmer},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestUpdateStatus_onlyAssignedProvider(t *testing.T) {
	providerID := uuid.New()
	orderID := uuid.New()
	repo := &stubDeliveriesRepo{
		delivery: &models.Delivery{ID: uuid.New(), ProviderID: providerID, OrderID: orderID, Status: enums.DeliveryStatusAssigned},
	}
	svc := newTestDeliveriesService(t, repo, &stubBridge{})

	err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: orderID,
		Actor:   types.Actor{ID: uuid.New(), Role: enums.ActorRoleLogistics},
		Status:  enums.DeliveryStatusPickedUp,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestUpdateStatus_invalidTransition(t *testing.T) {
	providerID := uuid.New()
	orderID := uuid.New()
	repo := &stubDeliveriesRepo{
		delivery: &models.Delivery{ID: uuid.New(), ProviderID: providerID, OrderID: orderID, Status: enums.DeliveryStatusAssigned},
	}
	svc := newTestDeliveriesService(t, repo, &stubBridge{})

	err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: orderID,
		Actor:   types.Actor{ID: providerID, Role: enums.ActorRoleLogistics},
		Status:  enums.DeliveryStatusDelivered,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestUpdateStatus_deliveredPropagatesAndAggregates(t *testing.T) {
	providerID := uuid.New()
	orderID := uuid.New()
	repo := &stubDeliveriesRepo{
		provider: &models.LogisticsProvider{ID: providerID, Name: "Swift Riders", Active: true, Available: true, TotalDeliveries: 3, SuccessfulDeliveries: 2},
		delivery: &models.Delivery{ID: uuid.New(), ProviderID: providerID, OrderID: orderID, Status: enums.DeliveryStatusInTransit},
		bounds: []TimelineBounds{
			{First: time.Now().Add(-time.Hour), Last: time.Now()},
		},
	}
	bridge := &stubBridge{}
	svc := newTestDeliveriesService(t, repo, bridge)

	err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: orderID,
		Actor:   types.Actor{ID: providerID, Role: enums.ActorRoleLogistics},
		Status:  enums.DeliveryStatusDelivered,
	})
	require.NoError(t, err)

	assert.Equal(t, enums.DeliveryStatusDelivered, repo.delivery.Status)
	require.NotNil(t, repo.delivery.DeliveredAt)

	require.Len(t, bridge.applied, 1)
	assert.Equal(t, enums.DeliveryStatusDelivered, bridge.applied[0].status)
	assert.Equal(t, orderID, bridge.applied[0].orderID)

	require.Len(t, repo.counterCalls, 1)
	assert.True(t, repo.counterCalls[0])
	assert.Equal(t, float64(3)/float64(4)*100, repo.perfRate)
	assert.InDelta(t, 60, repo.perfAvg, 0.1)
}

func TestNextDeliveryStatus(t *testing.T) {
	cases := []struct {
		from    enums.DeliveryStatus
		to      enums.DeliveryStatus
		allowed bool
	}{
		{enums.DeliveryStatusAssigned, enums.DeliveryStatusPickedUp, true},
		{enums.DeliveryStatusAssigned, enums.DeliveryStatusInTransit, false},
		{enums.DeliveryStatusAssigned, enums.DeliveryStatusFailed, true},
		{enums.DeliveryStatusPickedUp, enums.DeliveryStatusInTransit, true},
		{enums.DeliveryStatusInTransit, enums.DeliveryStatusDelivered, true},
		{enums.DeliveryStatusDelivered, enums.DeliveryStatusFailed, false},
		{enums.DeliveryStatusFailed, enums.DeliveryStatusAssigned, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.allowed, nextDeliveryStatus(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestRateProvider(t *testing.T) {
	providerID := uuid.New()
	buyerID := uuid.New()
	orderID := uuid.New()
	repo := &stubDeliveriesRepo{
		delivery: &models.Delivery{ID: uuid.New(), ProviderID: providerID, OrderID: orderID, Status: enums.DeliveryStatusDelivered},
		order:    &models.Order{ID: orderID, BuyerID: buyerID},
	}
	svc := newTestDeliveriesService(t, repo, &stubBridge{})

	err := svc.RateProvider(context.Background(), RateInput{
		OrderID: orderID,
		Actor:   types.Actor{ID: buyerID, Role: enums.ActorRoleBuyer},
		Score:   4,
	})
	require.NoError(t, err)
	require.Len(t, repo.ratings, 1)
	assert.Equal(t, []int{4}, repo.appliedScores)

	// Another buyer cannot rate someone else's order.
	err = svc.RateProvider(context.Background(), RateInput{
		OrderID: orderID,
		Actor:   types.Actor{ID: uuid.New(), Role: enums.ActorRoleBuyer},
		Score:   1,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestRateProvider_duplicateRejected(t *testing.T) {
	providerID := uuid.New()
	buyerID := uuid.New()
	orderID := uuid.New()
	repo := &stubDeliveriesRepo{
		delivery:  &models.Delivery{ID: uuid.New(), ProviderID: providerID, OrderID: orderID, Status: enums.DeliveryStatusDelivered},
		order:     &models.Order{ID: orderID, BuyerID: buyerID},
		ratingErr: errors.New("UNIQUE constraint failed: provider_ratings.order_id"),
	}
	svc := newTestDeliveriesService(t, repo, &stubBridge{})

	err := svc.RateProvider(context.Background(), RateInput{
		OrderID: orderID,
		Actor:   types.Actor{ID: buyerID, Role: enums.ActorRoleBuyer},
		Score:   5,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Empty(t, repo.appliedScores)
}

func TestRepairDanglingAssignments(t *testing.T) {
	providerID := uuid.New()
	repo := &stubDeliveriesRepo{
		unlinked: []models.Delivery{
			{ID: uuid.New(), ProviderID: providerID, OrderID: uuid.New(), Status: enums.DeliveryStatusAssigned},
		},
		orphans: []models.Order{
			{ID: uuid.New(), BuyerID: uuid.New()},
		},
	}
	bridge := &stubBridge{}
	svc := newTestDeliveriesService(t, repo, bridge)

	report, err := svc.RepairDanglingAssignments(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Repaired)
	assert.Equal(t, 1, report.Flagged)
	require.Len(t, bridge.attached, 1)
}
