package domain

import (
	"fmt"
	"math"
)

// Reserve marks the cab as serving a confirmed trip.
func (c *Cab) Reserve() { c.Available = false }

// Release returns the cab to the dispatch pool.
func (c *Cab) Release() { c.Available = true }

// Fare is the bill for distanceKm at the cab's per-kilometer rate. It fails
// with ErrInvalidArgument when the product does not fit in an int64.
func (c Cab) Fare(distanceKm int64) (int64, error) {
	if distanceKm < 0 || c.PerKmRate < 0 {
		return 0, fmt.Errorf("%w: negative distance or rate", ErrInvalidArgument)
	}
	if c.PerKmRate != 0 && distanceKm > math.MaxInt64/c.PerKmRate {
		return 0, fmt.Errorf("%w: fare for %d km at %d/km overflows", ErrInvalidArgument, distanceKm, c.PerKmRate)
	}
	return distanceKm * c.PerKmRate, nil
}

// NewTripBooking creates a confirmed trip served by driver and reserves the
// driver's cab. The driver reference is fixed for the life of the trip. The
// cab is left untouched when the fare cannot be computed.
func NewTripBooking(customerID int64, driver *Driver, from, to string, distanceKm int64) (TripBooking, error) {
	bill, err := driver.Cab.Fare(distanceKm)
	if err != nil {
		return TripBooking{}, err
	}
	driver.Cab.Reserve()
	return TripBooking{
		CustomerID:   customerID,
		DriverID:     driver.ID,
		FromLocation: from,
		ToLocation:   to,
		DistanceKm:   distanceKm,
		Status:       StatusConfirmed,
		Bill:         bill,
	}, nil
}

// Cancel moves the trip to CANCELED and clears the bill. The cab is released
// only when the trip was holding it.
func (t *TripBooking) Cancel(driver *Driver) error {
	if err := t.moveTo(StatusCanceled, driver); err != nil {
		return err
	}
	t.Bill = 0
	return nil
}

// Complete moves the trip to COMPLETED, keeping the fare already charged.
func (t *TripBooking) Complete(driver *Driver) error {
	return t.moveTo(StatusCompleted, driver)
}

// CancelForRemoval cancels the trip as part of removing its customer. The
// bill is left as charged.
func (t *TripBooking) CancelForRemoval(driver *Driver) {
	if t.Status == StatusConfirmed {
		driver.Cab.Release()
	}
	t.Status = StatusCanceled
}

func (t *TripBooking) moveTo(next TripStatus, driver *Driver) error {
	if !t.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	if t.Status == StatusConfirmed {
		driver.Cab.Release()
	}
	t.Status = next
	return nil
}
