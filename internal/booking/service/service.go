package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/cabbook/internal/booking/dispatch"
	"github.com/example/cabbook/internal/booking/domain"
)

const (
	defaultOpTimeout = 5 * time.Second
	keyStripes       = 64
)

// Service runs the trip lifecycle: booking, cancellation, completion and
// customer removal. Every operation is one unit of work against the store.
type Service struct {
	store      domain.Transactor
	dispatcher *dispatch.Dispatcher
	clock      domain.Clock
	idempotent domain.IdempotencyRepository
	logger     *zap.Logger
	tracer     trace.Tracer
	timeout    time.Duration
	hashCost   int
	// keyLocks serializes bookings that share an idempotency key within this process.
	keyLocks [keyStripes]chan struct{}
}

// Option customizes a Service.
type Option func(*Service)

// WithTimeout bounds each lifecycle operation.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithPasswordCost sets the bcrypt cost used when registering customers.
func WithPasswordCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// New constructs a Service with the required collaborators. idem may be nil.
func New(store domain.Transactor, dispatcher *dispatch.Dispatcher, clock domain.Clock, idem domain.IdempotencyRepository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dispatcher == nil {
		dispatcher = dispatch.New()
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	s := &Service{
		store:      store,
		dispatcher: dispatcher,
		clock:      clock,
		idempotent: idem,
		logger:     logger,
		tracer:     otel.Tracer("booking.service"),
		timeout:    defaultOpTimeout,
		hashCost:   bcrypt.DefaultCost,
	}
	for i := range s.keyLocks {
		s.keyLocks[i] = make(chan struct{}, 1)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BookTripRequest contains the request payload for booking a trip.
type BookTripRequest struct {
	CustomerID   int64
	FromLocation string
	ToLocation   string
	DistanceKm   int64
}

// BookTrip assigns the lowest-id free driver to a new confirmed trip, bills it
// at the cab's rate and reserves the cab. Repeated calls with the same
// non-empty key return the first response.
func (s *Service) BookTrip(ctx context.Context, key string, req BookTripRequest) (domain.TripBooking, error) {
	if req.DistanceKm < 0 {
		return domain.TripBooking{}, fmt.Errorf("%w: distance must be non-negative", domain.ErrInvalidArgument)
	}
	ctx, span, cancel := s.begin(ctx, "BookTrip", attribute.Int64("customer_id", req.CustomerID))
	defer cancel()
	defer span.End()

	if key != "" && s.idempotent != nil {
		unlock, err := s.lockKey(ctx, key)
		if err != nil {
			return domain.TripBooking{}, s.fail(span, "book", fmt.Errorf("book trip: %w", err))
		}
		defer unlock()
		if trip, ok := s.replay(ctx, key); ok {
			return trip, nil
		}
	}

	var booked domain.TripBooking
	err := s.store.InTx(ctx, func(ctx context.Context, store domain.Store) error {
		customer, err := store.GetCustomer(ctx, req.CustomerID)
		if err != nil {
			return err
		}
		driver, err := s.dispatcher.Dispatch(ctx, store)
		if err != nil {
			return err
		}

		trip, err := domain.NewTripBooking(customer.ID, &driver, req.FromLocation, req.ToLocation, req.DistanceKm)
		if err != nil {
			return err
		}
		if trip, err = store.SaveTripBooking(ctx, trip); err != nil {
			return err
		}
		customer.TripBookingIDs = append(customer.TripBookingIDs, trip.ID)
		if _, err := store.SaveCustomer(ctx, customer); err != nil {
			return err
		}
		if _, err := store.SaveDriver(ctx, driver); err != nil {
			return err
		}
		booked = trip
		return store.AppendEvent(ctx, s.event(trip.ID, domain.EventTripBooked, map[string]any{
			"customer_id": customer.ID,
			"driver_id":   driver.ID,
			"bill":        trip.Bill,
		}))
	})
	if err != nil {
		return domain.TripBooking{}, s.fail(span, "book", fmt.Errorf("book trip: %w", err))
	}
	s.succeed("book")
	s.logger.Info("trip booked",
		zap.Int64("trip_id", booked.ID),
		zap.Int64("customer_id", booked.CustomerID),
		zap.Int64("driver_id", booked.DriverID),
		zap.Int64("bill", booked.Bill))

	if key != "" && s.idempotent != nil {
		if payload, err := json.Marshal(booked); err == nil {
			if err := s.idempotent.PutResponse(ctx, key, payload); err != nil {
				s.logger.Warn("idempotency store failed", zap.Error(err))
			}
		}
	}
	return booked, nil
}

// CancelTrip cancels the trip, clears its bill and frees the cab it held.
func (s *Service) CancelTrip(ctx context.Context, tripID int64) (domain.TripBooking, error) {
	ctx, span, cancel := s.begin(ctx, "CancelTrip", attribute.Int64("trip_id", tripID))
	defer cancel()
	defer span.End()

	updated, err := s.finish(ctx, tripID, domain.EventTripCanceled, func(trip *domain.TripBooking, driver *domain.Driver) error {
		return trip.Cancel(driver)
	})
	if err != nil {
		return domain.TripBooking{}, s.fail(span, "cancel", fmt.Errorf("cancel trip: %w", err))
	}
	s.succeed("cancel")
	s.logger.Info("trip canceled", zap.Int64("trip_id", tripID), zap.Int64("driver_id", updated.DriverID))
	return updated, nil
}

// CompleteTrip completes the trip and frees the cab; the bill stays as charged.
func (s *Service) CompleteTrip(ctx context.Context, tripID int64) (domain.TripBooking, error) {
	ctx, span, cancel := s.begin(ctx, "CompleteTrip", attribute.Int64("trip_id", tripID))
	defer cancel()
	defer span.End()

	updated, err := s.finish(ctx, tripID, domain.EventTripCompleted, func(trip *domain.TripBooking, driver *domain.Driver) error {
		return trip.Complete(driver)
	})
	if err != nil {
		return domain.TripBooking{}, s.fail(span, "complete", fmt.Errorf("complete trip: %w", err))
	}
	s.succeed("complete")
	s.logger.Info("trip completed", zap.Int64("trip_id", tripID), zap.Int64("bill", updated.Bill))
	return updated, nil
}

func (s *Service) finish(ctx context.Context, tripID int64, eventType domain.TripEventType, transition func(*domain.TripBooking, *domain.Driver) error) (domain.TripBooking, error) {
	var updated domain.TripBooking
	err := s.store.InTx(ctx, func(ctx context.Context, store domain.Store) error {
		trip, err := store.GetTripBooking(ctx, tripID)
		if err != nil {
			return err
		}
		driver, err := store.GetDriver(ctx, trip.DriverID)
		if err != nil {
			return err
		}
		previous := trip.Status
		if err := transition(&trip, &driver); err != nil {
			return err
		}
		if trip, err = store.SaveTripBooking(ctx, trip); err != nil {
			return err
		}
		if _, err := store.SaveDriver(ctx, driver); err != nil {
			return err
		}
		updated = trip
		if previous == trip.Status {
			return nil
		}
		return store.AppendEvent(ctx, s.event(trip.ID, eventType, map[string]any{
			"driver_id": driver.ID,
			"bill":      trip.Bill,
		}))
	})
	return updated, err
}

// DeleteCustomer cancels every trip in the customer's booking list, frees the
// cabs those trips held and removes the customer together with its trips.
// Bills of the canceled trips are not reset.
func (s *Service) DeleteCustomer(ctx context.Context, customerID int64) error {
	ctx, span, cancel := s.begin(ctx, "DeleteCustomer", attribute.Int64("customer_id", customerID))
	defer cancel()
	defer span.End()

	var released []int64
	err := s.store.InTx(ctx, func(ctx context.Context, store domain.Store) error {
		customer, err := store.GetCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		trips := make([]domain.TripBooking, 0, len(customer.TripBookingIDs))
		for _, tripID := range customer.TripBookingIDs {
			trip, err := store.GetTripBooking(ctx, tripID)
			if err != nil {
				return err
			}
			trips = append(trips, trip)
		}
		// Drivers are locked in ascending id order, the order dispatch uses.
		drivers, err := loadDriversInOrder(ctx, store, trips)
		if err != nil {
			return err
		}
		for _, trip := range trips {
			driver := drivers[trip.DriverID]
			trip.CancelForRemoval(driver)
			if _, err := store.SaveTripBooking(ctx, trip); err != nil {
				return err
			}
		}
		for _, id := range sortedKeys(drivers) {
			if _, err := store.SaveDriver(ctx, *drivers[id]); err != nil {
				return err
			}
			released = append(released, id)
		}
		if err := store.DeleteCustomer(ctx, customer.ID); err != nil {
			return err
		}
		return store.AppendEvent(ctx, s.event(0, domain.EventCustomerDeleted, map[string]any{
			"customer_id": customer.ID,
			"trip_ids":    customer.TripBookingIDs,
		}))
	})
	if err != nil {
		return s.fail(span, "delete_customer", fmt.Errorf("delete customer: %w", err))
	}
	s.succeed("delete_customer")
	s.logger.Info("customer deleted", zap.Int64("customer_id", customerID), zap.Int64s("drivers", released))
	return nil
}

func loadDriversInOrder(ctx context.Context, store domain.Store, trips []domain.TripBooking) (map[int64]*domain.Driver, error) {
	drivers := make(map[int64]*domain.Driver, len(trips))
	for _, trip := range trips {
		drivers[trip.DriverID] = nil
	}
	for _, id := range sortedKeys(drivers) {
		driver, err := store.GetDriver(ctx, id)
		if err != nil {
			return nil, err
		}
		drivers[id] = &driver
	}
	return drivers, nil
}

func sortedKeys(m map[int64]*domain.Driver) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// lockKey waits for the stripe owning key, or for ctx to end.
func (s *Service) lockKey(ctx context.Context, key string) (func(), error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	stripe := s.keyLocks[h.Sum32()%keyStripes]
	select {
	case stripe <- struct{}{}:
		return func() { <-stripe }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) replay(ctx context.Context, key string) (domain.TripBooking, bool) {
	cached, ok, err := s.idempotent.GetResponse(ctx, key)
	if err != nil {
		s.logger.Warn("idempotency lookup failed", zap.Error(err))
		return domain.TripBooking{}, false
	}
	if !ok {
		return domain.TripBooking{}, false
	}
	var trip domain.TripBooking
	if err := json.Unmarshal(cached, &trip); err != nil {
		s.logger.Warn("idempotency payload unreadable", zap.Error(err))
		return domain.TripBooking{}, false
	}
	return trip, true
}

func (s *Service) event(tripID int64, typ domain.TripEventType, payload map[string]any) domain.TripEvent {
	return domain.TripEvent{
		ID:        uuid.New(),
		TripID:    tripID,
		Type:      typ,
		Payload:   payload,
		CreatedAt: s.clock.Now(),
	}
}

func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	ctx, span := s.tracer.Start(ctx, "booking."+op, trace.WithAttributes(attrs...))
	return ctx, span, cancel
}

func (s *Service) fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	result := "error"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		result = "not_found"
	case errors.Is(err, domain.ErrNoDriverAvailable):
		result = "no_driver"
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrInvalidArgument):
		result = "rejected"
	default:
		s.logger.Error("operation failed", zap.String("op", op), zap.Error(err))
	}
	operationsTotal.WithLabelValues(op, result).Inc()
	return err
}

func (s *Service) succeed(op string) {
	operationsTotal.WithLabelValues(op, "ok").Inc()
}
