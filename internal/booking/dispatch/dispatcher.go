package dispatch

import (
	"context"
	"time"

	"github.com/example/cabbook/internal/booking/domain"
)

// SelectDriver picks the driver with the lowest identifier among those whose
// cab is available. It has no side effects.
func SelectDriver(drivers []domain.Driver) (domain.Driver, error) {
	var (
		selected domain.Driver
		found    bool
	)
	for _, candidate := range drivers {
		if !candidate.Cab.Available {
			continue
		}
		if !found || candidate.ID < selected.ID {
			selected = candidate
			found = true
		}
	}
	if !found {
		return domain.Driver{}, domain.ErrNoDriverAvailable
	}
	return selected, nil
}

// DriverLister is the read side of the entity store the dispatcher needs.
type DriverLister interface {
	ListDrivers(ctx context.Context) ([]domain.Driver, error)
}

// Dispatcher selects drivers for new trips and records matching metrics.
// It does no locking; callers run it inside the unit of work that reserves the cab.
type Dispatcher struct{}

// New constructs a Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{}
}

// Dispatch loads every driver from store and selects one.
func (d *Dispatcher) Dispatch(ctx context.Context, store DriverLister) (domain.Driver, error) {
	start := time.Now()
	drivers, err := store.ListDrivers(ctx)
	if err != nil {
		observe(start, "error")
		return domain.Driver{}, err
	}
	driver, err := SelectDriver(drivers)
	if err != nil {
		observe(start, "no_driver")
		return domain.Driver{}, err
	}
	observe(start, "assigned")
	return driver, nil
}

func observe(start time.Time, result string) {
	dispatchDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	dispatchAttempts.WithLabelValues(result).Inc()
}
