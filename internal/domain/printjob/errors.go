package printjob

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrNotYourJob        = errors.New("job belongs to another customer")
	ErrNotQuoted         = errors.New("job is not quoted")
	ErrNotApproved       = errors.New("customer has not approved the quote")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStaffOnly         = errors.New("only staff can perform this action")
	ErrQuoteDecided      = errors.New("quote already decided")
	ErrResourceRequired  = errors.New("production resource id is required")
	ErrAlreadyRefunded   = errors.New("job already refunded")
	ErrNotRefundable     = errors.New("job has no refundable charge")
	ErrMalformedJob      = errors.New("malformed job record")
)

// TransitionError names the rejected move. It matches ErrInvalidTransition.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// MalformedError is returned when a stored job violates its invariants.
type MalformedError struct {
	JobID  uuid.UUID
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed job %s: %s", e.JobID, e.Reason)
}

func (e *MalformedError) Unwrap() error { return ErrMalformedJob }

// ValidationErrors maps field names to messages.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + v[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) orNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// ErrChargerUnavailable means the service was built without a transfer protocol.
var ErrChargerUnavailable = errors.New("charge protocol not configured")
