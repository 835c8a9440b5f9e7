package topup

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrTopUpNotFound       = errors.New("top-up not found")
	ErrNotYourTopUp        = errors.New("top-up belongs to another customer")
	ErrTopUpFinalized      = errors.New("top-up already approved")
	ErrEmptyTopUp          = errors.New("top-up must add hours or filament")
	ErrTopUpPrecision      = errors.New("top-up quantity exceeds 4 decimal places or 10 integer digits")
	ErrMalformedTopUp      = errors.New("malformed top-up record")
	ErrCrediterUnavailable = errors.New("credit protocol not configured")
)

// MalformedError is returned when a stored record violates its invariants.
type MalformedError struct {
	TopUpID uuid.UUID
	Reason  string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed top-up %s: %s", e.TopUpID, e.Reason)
}

func (e *MalformedError) Unwrap() error { return ErrMalformedTopUp }
