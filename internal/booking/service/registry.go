package service

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/cabbook/internal/booking/domain"
)

// RegisterCustomerRequest contains the profile of a new customer.
type RegisterCustomerRequest struct {
	Mobile   string
	Name     string
	Password string
}

// RegisterCustomer stores a new customer with an empty booking list.
func (s *Service) RegisterCustomer(ctx context.Context, req RegisterCustomerRequest) (domain.Customer, error) {
	if strings.TrimSpace(req.Mobile) == "" {
		return domain.Customer{}, fmt.Errorf("%w: mobile is required", domain.ErrInvalidArgument)
	}
	customer := domain.Customer{Mobile: req.Mobile, Name: req.Name}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
		if err != nil {
			return domain.Customer{}, fmt.Errorf("hash password: %w", err)
		}
		customer.PasswordHash = string(hash)
	}

	ctx, span, cancel := s.begin(ctx, "RegisterCustomer")
	defer cancel()
	defer span.End()

	err := s.store.InTx(ctx, func(ctx context.Context, store domain.Store) error {
		var err error
		customer, err = store.SaveCustomer(ctx, customer)
		return err
	})
	if err != nil {
		return domain.Customer{}, s.fail(span, "register_customer", fmt.Errorf("register customer: %w", err))
	}
	s.succeed("register_customer")
	s.logger.Info("customer registered", zap.Int64("customer_id", customer.ID))
	return customer, nil
}

// RegisterDriverRequest contains a new driver and the rate of the cab they own.
type RegisterDriverRequest struct {
	Mobile    string
	Name      string
	PerKmRate int64
}

// RegisterDriver stores a driver with their cab, available for dispatch.
func (s *Service) RegisterDriver(ctx context.Context, req RegisterDriverRequest) (domain.Driver, error) {
	if strings.TrimSpace(req.Mobile) == "" {
		return domain.Driver{}, fmt.Errorf("%w: mobile is required", domain.ErrInvalidArgument)
	}
	if req.PerKmRate < 0 {
		return domain.Driver{}, fmt.Errorf("%w: per-km rate must be non-negative", domain.ErrInvalidArgument)
	}

	ctx, span, cancel := s.begin(ctx, "RegisterDriver")
	defer cancel()
	defer span.End()

	driver := domain.Driver{Mobile: req.Mobile, Name: req.Name, Cab: domain.Cab{PerKmRate: req.PerKmRate, Available: true}}
	err := s.store.InTx(ctx, func(ctx context.Context, store domain.Store) error {
		var err error
		driver, err = store.SaveDriver(ctx, driver)
		return err
	})
	if err != nil {
		return domain.Driver{}, s.fail(span, "register_driver", fmt.Errorf("register driver: %w", err))
	}
	s.succeed("register_driver")
	s.logger.Info("driver registered", zap.Int64("driver_id", driver.ID), zap.Int64("per_km_rate", req.PerKmRate))
	return driver, nil
}

// GetCustomer retrieves a customer by identifier.
func (s *Service) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	ctx, span, cancel := s.begin(ctx, "GetCustomer", attribute.Int64("customer_id", id))
	defer cancel()
	defer span.End()

	var customer domain.Customer
	err := s.store.InTx(ctx, func(ctx context.Context, store domain.Store) error {
		var err error
		customer, err = store.GetCustomer(ctx, id)
		return err
	})
	return customer, err
}

// GetTrip retrieves a trip by identifier.
func (s *Service) GetTrip(ctx context.Context, id int64) (domain.TripBooking, error) {
	ctx, span, cancel := s.begin(ctx, "GetTrip", attribute.Int64("trip_id", id))
	defer cancel()
	defer span.End()

	var trip domain.TripBooking
	err := s.store.InTx(ctx, func(ctx context.Context, store domain.Store) error {
		var err error
		trip, err = store.GetTripBooking(ctx, id)
		return err
	})
	return trip, err
}

// TripDetails is a trip together with the driver serving it.
type TripDetails struct {
	Trip   domain.TripBooking
	Driver domain.Driver
}

// GetTripDetails loads a trip and its driver in one unit of work.
func (s *Service) GetTripDetails(ctx context.Context, id int64) (TripDetails, error) {
	ctx, span, cancel := s.begin(ctx, "GetTripDetails", attribute.Int64("trip_id", id))
	defer cancel()
	defer span.End()

	var details TripDetails
	err := s.store.InTx(ctx, func(ctx context.Context, store domain.Store) error {
		trip, err := store.GetTripBooking(ctx, id)
		if err != nil {
			return err
		}
		driver, err := store.GetDriver(ctx, trip.DriverID)
		if err != nil {
			return err
		}
		details = TripDetails{Trip: trip, Driver: driver}
		return nil
	})
	return details, err
}

// ListDrivers returns every driver with their cab.
func (s *Service) ListDrivers(ctx context.Context) ([]domain.Driver, error) {
	ctx, span, cancel := s.begin(ctx, "ListDrivers")
	defer cancel()
	defer span.End()

	var drivers []domain.Driver
	err := s.store.InTx(ctx, func(ctx context.Context, store domain.Store) error {
		var err error
		drivers, err = store.ListDrivers(ctx)
		return err
	})
	return drivers, err
}
