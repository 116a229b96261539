package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TripStatus string

const (
	StatusConfirmed TripStatus = "CONFIRMED"
	StatusCanceled  TripStatus = "CANCELED"
	StatusCompleted TripStatus = "COMPLETED"
)

var allowedTransitions = map[TripStatus][]TripStatus{
	StatusConfirmed: {StatusCanceled, StatusCompleted},
}

// CanTransitionTo reports whether a trip in status s may move to next.
// Re-entering the current status is always allowed.
func (s TripStatus) CanTransitionTo(next TripStatus) bool {
	if s == next {
		return true
	}
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions leave s.
func (s TripStatus) Terminal() bool {
	return s == StatusCanceled || s == StatusCompleted
}

type Customer struct {
	ID             int64   `json:"id"`
	Mobile         string  `json:"mobile"`
	Name           string  `json:"name"`
	PasswordHash   string  `json:"-"`
	TripBookingIDs []int64 `json:"trip_booking_ids"`
}

type Cab struct {
	ID        int64 `json:"id"`
	PerKmRate int64 `json:"per_km_rate"`
	Available bool  `json:"available"`
}

type Driver struct {
	ID     int64  `json:"id"`
	Mobile string `json:"mobile"`
	Name   string `json:"name"`
	Cab    Cab    `json:"cab"`
}

type TripBooking struct {
	ID           int64      `json:"id"`
	CustomerID   int64      `json:"customer_id"`
	DriverID     int64      `json:"driver_id"`
	FromLocation string     `json:"from_location"`
	ToLocation   string     `json:"to_location"`
	DistanceKm   int64      `json:"distance_km"`
	Status       TripStatus `json:"status"`
	Bill         int64      `json:"bill"`
}

type TripEventType string

const (
	EventTripBooked      TripEventType = "TripBooked"
	EventTripCanceled    TripEventType = "TripCanceled"
	EventTripCompleted   TripEventType = "TripCompleted"
	EventCustomerDeleted TripEventType = "CustomerDeleted"
)

type TripEvent struct {
	ID        uuid.UUID      `json:"id"`
	TripID    int64          `json:"trip_id,omitempty"`
	Type      TripEventType  `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store is the entity store seen from inside a unit of work. Save methods
// insert when the record ID is zero and return the record with its assigned ID.
type Store interface {
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	SaveCustomer(ctx context.Context, customer Customer) (Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error

	GetDriver(ctx context.Context, id int64) (Driver, error)
	ListDrivers(ctx context.Context) ([]Driver, error)
	SaveDriver(ctx context.Context, driver Driver) (Driver, error)

	GetTripBooking(ctx context.Context, id int64) (TripBooking, error)
	SaveTripBooking(ctx context.Context, trip TripBooking) (TripBooking, error)

	AppendEvent(ctx context.Context, event TripEvent) error
}

// Transactor runs fn as one atomic unit against the entity store. Either every
// mutation made through the Store passed to fn is applied, or none is.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

type IdempotencyRepository interface {
	GetResponse(ctx context.Context, key string) ([]byte, bool, error)
	PutResponse(ctx context.Context, key string, payload []byte) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event TripEvent) error
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
