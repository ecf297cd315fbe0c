package vending

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPrice is returned when a negative price is supplied.
	ErrInvalidPrice = errors.New("vending: invalid price")
	// ErrInvalidShareSet is returned when share weights do not sum to 100%.
	ErrInvalidShareSet = errors.New("vending: invalid share set")
	// ErrUnknownPlatform is returned when a platform id is neither a schedule key nor an alias.
	ErrUnknownPlatform = errors.New("vending: unknown platform")
	// ErrInvalidSchedule is returned when a fee schedule fails validation.
	ErrInvalidSchedule = errors.New("vending: invalid fee schedule")
)

// InvalidPriceError reports the offending price.
type InvalidPriceError struct {
	Price Money
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("vending: invalid price %d", e.Price)
}

// Is matches ErrInvalidPrice.
func (e *InvalidPriceError) Is(target error) bool { return target == ErrInvalidPrice }

// InvalidShareSetError reports the weight total of a rejected share set.
type InvalidShareSetError struct {
	Sum    Percent
	Reason string
}

func (e *InvalidShareSetError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("vending: invalid share set: %s", e.Reason)
	}
	return fmt.Sprintf("vending: invalid share set: weights sum to %s%%, want 100%%", e.Sum)
}

// Is matches ErrInvalidShareSet.
func (e *InvalidShareSetError) Is(target error) bool { return target == ErrInvalidShareSet }

// UnknownPlatformError names the platform id that could not be resolved.
type UnknownPlatformError struct {
	PlatformID PlatformID
}

func (e *UnknownPlatformError) Error() string {
	return fmt.Sprintf("vending: unknown platform %q", e.PlatformID)
}

// Is matches ErrUnknownPlatform.
func (e *UnknownPlatformError) Is(target error) bool { return target == ErrUnknownPlatform }

func scheduleErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSchedule, fmt.Sprintf(format, args...))
}
