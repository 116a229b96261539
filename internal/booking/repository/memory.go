package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/example/cabbook/internal/booking/domain"
)

// MemoryStore provides an in-memory entity store suitable for tests and local demos.
// Units of work are serialized by a single mutex and applied copy-on-write, so a
// failed unit leaves no trace.
type MemoryStore struct {
	mu        sync.Mutex
	state     *memState
	events    []domain.TripEvent
	publisher domain.EventPublisher
	logger    *zap.Logger
}

type memState struct {
	customers map[int64]domain.Customer
	drivers   map[int64]domain.Driver
	trips     map[int64]domain.TripBooking
	nextID    map[string]int64
}

// MemoryOption customizes a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithPublisher publishes recorded events after each committed unit of work.
func WithPublisher(p domain.EventPublisher) MemoryOption {
	return func(m *MemoryStore) { m.publisher = p }
}

// WithLogger sets the logger used for publish failures.
func WithLogger(logger *zap.Logger) MemoryOption {
	return func(m *MemoryStore) { m.logger = logger }
}

// NewMemoryStore constructs an empty memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		state: &memState{
			customers: make(map[int64]domain.Customer),
			drivers:   make(map[int64]domain.Driver),
			trips:     make(map[int64]domain.TripBooking),
			nextID:    make(map[string]int64),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// InTx runs fn against a private copy of the store and commits it when fn
// succeeds. Committed events are published once the lock is released.
func (m *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, store domain.Store) error) error {
	events, err := m.commit(ctx, fn)
	if err != nil {
		return err
	}
	if m.publisher != nil {
		for _, evt := range events {
			if err := m.publisher.Publish(ctx, evt); err != nil {
				m.logger.Warn("publish event failed", zap.Error(err), zap.String("event_type", string(evt.Type)))
			}
		}
	}
	return nil
}

func (m *MemoryStore) commit(ctx context.Context, fn func(ctx context.Context, store domain.Store) error) ([]domain.TripEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{state: m.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	m.state = tx.state
	m.events = append(m.events, tx.events...)
	return tx.events, nil
}

// Events returns committed events (for tests).
func (m *MemoryStore) Events() []domain.TripEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TripEvent(nil), m.events...)
}

func (s *memState) clone() *memState {
	c := &memState{
		customers: make(map[int64]domain.Customer, len(s.customers)),
		drivers:   make(map[int64]domain.Driver, len(s.drivers)),
		trips:     make(map[int64]domain.TripBooking, len(s.trips)),
		nextID:    make(map[string]int64, len(s.nextID)),
	}
	for id, cust := range s.customers {
		cust.TripBookingIDs = append([]int64(nil), cust.TripBookingIDs...)
		c.customers[id] = cust
	}
	for id, d := range s.drivers {
		c.drivers[id] = d
	}
	for id, t := range s.trips {
		c.trips[id] = t
	}
	for k, v := range s.nextID {
		c.nextID[k] = v
	}
	return c
}

func (s *memState) allocate(kind string) int64 {
	s.nextID[kind]++
	return s.nextID[kind]
}

type memTx struct {
	state  *memState
	events []domain.TripEvent
}

func (t *memTx) GetCustomer(_ context.Context, id int64) (domain.Customer, error) {
	cust, ok := t.state.customers[id]
	if !ok {
		return domain.Customer{}, fmt.Errorf("customer %d: %w", id, domain.ErrNotFound)
	}
	cust.TripBookingIDs = append([]int64(nil), cust.TripBookingIDs...)
	return cust, nil
}

func (t *memTx) SaveCustomer(_ context.Context, customer domain.Customer) (domain.Customer, error) {
	if customer.ID == 0 {
		customer.ID = t.state.allocate("customer")
	} else if _, ok := t.state.customers[customer.ID]; !ok {
		return domain.Customer{}, fmt.Errorf("customer %d: %w", customer.ID, domain.ErrNotFound)
	}
	customer.TripBookingIDs = append([]int64(nil), customer.TripBookingIDs...)
	t.state.customers[customer.ID] = customer
	return customer, nil
}

// DeleteCustomer removes the customer and the trip bookings it owns.
func (t *memTx) DeleteCustomer(_ context.Context, id int64) error {
	if _, ok := t.state.customers[id]; !ok {
		return fmt.Errorf("customer %d: %w", id, domain.ErrNotFound)
	}
	for tripID, trip := range t.state.trips {
		if trip.CustomerID == id {
			delete(t.state.trips, tripID)
		}
	}
	delete(t.state.customers, id)
	return nil
}

func (t *memTx) GetDriver(_ context.Context, id int64) (domain.Driver, error) {
	d, ok := t.state.drivers[id]
	if !ok {
		return domain.Driver{}, fmt.Errorf("driver %d: %w", id, domain.ErrNotFound)
	}
	return d, nil
}

// ListDrivers returns drivers ordered by identifier.
func (t *memTx) ListDrivers(_ context.Context) ([]domain.Driver, error) {
	drivers := make([]domain.Driver, 0, len(t.state.drivers))
	for _, d := range t.state.drivers {
		drivers = append(drivers, d)
	}
	sort.Slice(drivers, func(i, j int) bool { return drivers[i].ID < drivers[j].ID })
	return drivers, nil
}

func (t *memTx) SaveDriver(_ context.Context, driver domain.Driver) (domain.Driver, error) {
	if driver.ID == 0 {
		driver.ID = t.state.allocate("driver")
	} else if _, ok := t.state.drivers[driver.ID]; !ok {
		return domain.Driver{}, fmt.Errorf("driver %d: %w", driver.ID, domain.ErrNotFound)
	}
	if driver.Cab.ID == 0 {
		driver.Cab.ID = t.state.allocate("cab")
	}
	t.state.drivers[driver.ID] = driver
	return driver, nil
}

func (t *memTx) GetTripBooking(_ context.Context, id int64) (domain.TripBooking, error) {
	trip, ok := t.state.trips[id]
	if !ok {
		return domain.TripBooking{}, fmt.Errorf("trip %d: %w", id, domain.ErrNotFound)
	}
	return trip, nil
}

func (t *memTx) SaveTripBooking(_ context.Context, trip domain.TripBooking) (domain.TripBooking, error) {
	if _, ok := t.state.customers[trip.CustomerID]; !ok {
		return domain.TripBooking{}, fmt.Errorf("customer %d: %w", trip.CustomerID, domain.ErrNotFound)
	}
	if trip.ID == 0 {
		trip.ID = t.state.allocate("trip")
	} else if _, ok := t.state.trips[trip.ID]; !ok {
		return domain.TripBooking{}, fmt.Errorf("trip %d: %w", trip.ID, domain.ErrNotFound)
	}
	t.state.trips[trip.ID] = trip
	return trip, nil
}

func (t *memTx) AppendEvent(_ context.Context, event domain.TripEvent) error {
	t.events = append(t.events, event)
	return nil
}
