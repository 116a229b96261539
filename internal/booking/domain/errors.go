package domain

import "errors"

var (
	// ErrNotFound is returned when a customer, driver or trip does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoDriverAvailable means no cab is free at booking time.
	ErrNoDriverAvailable = errors.New("no cab available")

	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidTransition is returned when a trip is asked to leave a terminal status.
	ErrInvalidTransition = errors.New("invalid trip state transition")
)
