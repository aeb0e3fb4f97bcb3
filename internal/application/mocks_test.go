package application

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-event-ticket-booking/internal/infrastructure/redis"
)

// MockTxManager implements transaction.Manager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(transaction.Tx), args.Error(1)
}

// MockTx implements transaction.Tx
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockEventRepository implements event.Repository
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Create(ctx context.Context, e *event.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockEventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventRepository) List(ctx context.Context, filter event.ListFilter) ([]*event.Event, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*event.Event), args.Error(1)
}

func (m *MockEventRepository) Update(ctx context.Context, e *event.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockEventRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEventRepository) ReserveTickets(ctx context.Context, tx transaction.Tx, id string, n int) (*event.Event, error) {
	args := m.Called(ctx, tx, id, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventRepository) ReleaseTickets(ctx context.Context, tx transaction.Tx, id string, n int) (*event.Event, error) {
	args := m.Called(ctx, tx, id, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

// MockBookingRepository implements booking.Repository
type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	args := m.Called(ctx, tx, b)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) GetByIdempotencyKey(ctx context.Context, key string) (*booking.Booking, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) UpdateStatus(ctx context.Context, tx transaction.Tx, b *booking.Booking, prev booking.Status) error {
	args := m.Called(ctx, tx, b, prev)
	return args.Error(0)
}

func (m *MockBookingRepository) Delete(ctx context.Context, tx transaction.Tx, id string) (*booking.Booking, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) GetStalePending(ctx context.Context, before time.Time, limit int) ([]*booking.Booking, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Booking), args.Error(1)
}

// MockQueryRepository implements booking.QueryRepository
type MockQueryRepository struct {
	mock.Mock
}

func (m *MockQueryRepository) GetDetails(ctx context.Context, id string) (*booking.Details, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Details), args.Error(1)
}

func (m *MockQueryRepository) List(ctx context.Context, filter booking.Filter) ([]*booking.Details, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Details), args.Error(1)
}

func (m *MockQueryRepository) SalesSummary(ctx context.Context, eventID string) (*booking.SalesSummary, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.SalesSummary), args.Error(1)
}

func (m *MockQueryRepository) OrganizerSummary(ctx context.Context, organizerID string) (*booking.OrganizerSummary, error) {
	args := m.Called(ctx, organizerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.OrganizerSummary), args.Error(1)
}

// MockLockManager implements redisinfra.LockManagerInterface
type MockLockManager struct {
	mock.Mock
}

func (m *MockLockManager) Acquire(ctx context.Context, key string, opts redisinfra.LockOptions) (redisinfra.Lock, error) {
	args := m.Called(ctx, key, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(redisinfra.Lock), args.Error(1)
}

// MockLock implements redisinfra.Lock
type MockLock struct {
	mock.Mock
}

func (m *MockLock) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockAvailabilityCache implements redisinfra.AvailabilityCacheInterface
type MockAvailabilityCache struct {
	mock.Mock
}

func (m *MockAvailabilityCache) Get(ctx context.Context, eventID string) (*event.Availability, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Availability), args.Error(1)
}

func (m *MockAvailabilityCache) Set(ctx context.Context, a *event.Availability, ttl time.Duration) error {
	args := m.Called(ctx, a, ttl)
	return args.Error(0)
}

func (m *MockAvailabilityCache) Invalidate(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

// MockPublisher implements EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, ev any) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}
