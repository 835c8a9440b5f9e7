package wallet

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/printhub/printhub-api/internal/domain/filament"
)

var (
	ErrWalletNotFound       = errors.New("wallet not found")
	ErrInsufficientHours    = errors.New("insufficient hours")
	ErrInsufficientFilament = errors.New("insufficient filament")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidEntry         = errors.New("invalid ledger entry")
	ErrMalformedWallet      = errors.New("malformed wallet record")
)

// HoursError carries the shortfall. It matches ErrInsufficientHours.
type HoursError struct {
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *HoursError) Error() string {
	return fmt.Sprintf("insufficient hours: have %s, need %s", e.Available, e.Required)
}

func (e *HoursError) Unwrap() error { return ErrInsufficientHours }

// BucketError carries the bucket that could not be debited. It matches ErrInsufficientFilament.
type BucketError struct {
	Bucket      filament.Bucket
	Available   decimal.Decimal
	Required    decimal.Decimal
	Undebitable bool
}

func (e *BucketError) Error() string {
	if e.Undebitable {
		return fmt.Sprintf("insufficient filament: bucket %s cannot be charged", e.Bucket)
	}
	return fmt.Sprintf("insufficient filament in %s: have %s g, need %s g", e.Bucket, e.Available, e.Required)
}

func (e *BucketError) Unwrap() error { return ErrInsufficientFilament }
