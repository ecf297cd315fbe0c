package apps

import (
	"errors"
	"fmt"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-vending/internal/vending"
)

var (
	// ErrAppNotFound is returned when no vending setup exists for an app id.
	ErrAppNotFound = errors.New("apps: vending setup not found")
	// ErrBelowMinimum is returned when a payment is below the app's minimum.
	ErrBelowMinimum = errors.New("apps: amount below minimum payment")
	// ErrInvalidSetup is returned when a setup fails validation.
	ErrInvalidSetup = errors.New("apps: invalid vending setup")
)

var validate = validator.New()

// Setup is an application's vending configuration as chosen by its developer.
type Setup struct {
	AppID               string        `json:"app_id" validate:"required"`
	Runtime             string        `json:"runtime" validate:"required"`
	AppShare            int           `json:"app_share" validate:"gte=10,lte=100"`
	Currency            string        `json:"currency" validate:"omitempty,len=3,lowercase"`
	RecommendedDonation vending.Money `json:"recommended_donation" validate:"gte=0"`
	MinimumPayment      vending.Money `json:"minimum_payment" validate:"gte=0"`
}

// Ref returns the identity the share resolver needs.
func (s Setup) Ref() vending.ApplicationRef {
	return vending.ApplicationRef{ID: s.AppID, RuntimePlatformID: s.Runtime}
}

// BelowMinimumError carries the rejected amount and the app's minimum.
type BelowMinimumError struct {
	AppID   string
	Amount  vending.Money
	Minimum vending.Money
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("apps: amount %d for %s is below minimum payment %d", e.Amount, e.AppID, e.Minimum)
}

// Is matches ErrBelowMinimum.
func (e *BelowMinimumError) Is(target error) bool { return target == ErrBelowMinimum }

// CheckAmount enforces the minimum viable payment. A zero amount is only
// accepted when the app does not require a payment.
func (s Setup) CheckAmount(amount vending.Money) error {
	if amount < 0 {
		return &vending.InvalidPriceError{Price: amount}
	}
	if amount < s.MinimumPayment {
		return &BelowMinimumError{AppID: s.AppID, Amount: amount, Minimum: s.MinimumPayment}
	}
	return nil
}

// Validate checks field constraints on the setup.
func (s Setup) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidSetup, s.AppID, err)
	}
	if s.RecommendedDonation > 0 && s.RecommendedDonation < s.MinimumPayment {
		return fmt.Errorf("%w: %s: recommended donation %d below minimum payment %d", ErrInvalidSetup, s.AppID, s.RecommendedDonation, s.MinimumPayment)
	}
	return nil
}

// Registry is a read-only set of vending setups keyed by app id.
type Registry struct {
	byID  map[string]Setup
	order []string
}

// NewRegistry validates setups and indexes them. When schedule is non-nil,
// each setup's runtime must resolve against it.
func NewRegistry(setups []Setup, schedule *vending.FeeSchedule) (*Registry, error) {
	r := &Registry{byID: make(map[string]Setup, len(setups))}
	for _, s := range setups {
		s.AppID = strings.TrimSpace(s.AppID)
		s.Runtime = strings.TrimSpace(s.Runtime)
		s.Currency = strings.ToLower(strings.TrimSpace(s.Currency))
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[s.AppID]; dup {
			return nil, fmt.Errorf("%w: %s registered twice", ErrInvalidSetup, s.AppID)
		}
		if schedule != nil {
			if _, err := schedule.Canonical(s.Runtime); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrInvalidSetup, s.AppID, err)
			}
		}
		r.byID[s.AppID] = s
		r.order = append(r.order, s.AppID)
	}
	return r, nil
}

// Get returns the setup for id.
func (r *Registry) Get(id string) (Setup, error) {
	if r == nil {
		return Setup{}, ErrAppNotFound
	}
	s, ok := r.byID[strings.TrimSpace(id)]
	if !ok {
		return Setup{}, fmt.Errorf("%w: %s", ErrAppNotFound, id)
	}
	return s, nil
}

// List returns all setups in registration order.
func (r *Registry) List() []Setup {
	if r == nil {
		return nil
	}
	out := make([]Setup, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len reports the number of registered setups.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}
