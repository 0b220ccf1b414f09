/*
errors.go - Centralized error types for the gift-pool engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Store implementations translate driver errors into these so the
  engine never has to know which database it is talking to.

ERROR CATEGORIES:
  1. Input errors   - malformed birth dates, validation failures
  2. Store errors   - read/write failures, wrapped with the operation name
  3. Delivery errors - email send failures for one contributor
  4. Conflicts      - unique constraint hits; callers treat these as no-ops

USAGE:
  if err := store.InsertContributor(ctx, c); err != nil {
      if engine.IsConflict(err) {
          // someone else created it first, nothing to do
      }
  }

SEE ALSO:
  - report.go: how per-item errors end up in a RunReport
  - store.go: which operations return which sentinels
*/
package engine

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDate is returned for a missing or malformed birth date.
	ErrInvalidDate = errors.New("invalid date")

	// ErrStoreRead is returned when the backing store cannot be read.
	ErrStoreRead = errors.New("store read failed")

	// ErrStoreWrite is returned when the backing store rejects a write.
	ErrStoreWrite = errors.New("store write failed")

	// ErrDelivery is returned when an email cannot be handed to the provider.
	ErrDelivery = errors.New("delivery failed")

	// ErrDuplicateEvent is returned when an event already exists for the
	// same (community, honoree, year).
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrDuplicateContributor is returned when a contributor already exists
	// for the same (event, identity).
	ErrDuplicateContributor = errors.New("duplicate contributor")

	// ErrDuplicateMember is returned when a member with the same ID exists.
	ErrDuplicateMember = errors.New("duplicate member")

	// ErrDuplicateCommunity is returned when a community slug is taken.
	ErrDuplicateCommunity = errors.New("duplicate community")

	ErrCommunityNotFound   = errors.New("community not found")
	ErrMemberNotFound      = errors.New("member not found")
	ErrEventNotFound       = errors.New("event not found")
	ErrContributorNotFound = errors.New("contributor not found")

	// ErrCommunityInactive is returned when joining an inactive community.
	ErrCommunityInactive = errors.New("community is inactive")

	// ErrAlreadyPaid is returned when confirming a payment twice.
	ErrAlreadyPaid = errors.New("contributor already paid")

	// ErrRunInProgress is returned when a run is triggered while one is running.
	ErrRunInProgress = errors.New("run already in progress")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidDateError describes why a birth date could not be used.
type InvalidDateError struct {
	MemberID MemberID
	Value    string
	Reason   string
}

func (e *InvalidDateError) Error() string {
	if e.MemberID != "" {
		return fmt.Sprintf("invalid birth date %q for member %s: %s", e.Value, e.MemberID, e.Reason)
	}
	return fmt.Sprintf("invalid date %q: %s", e.Value, e.Reason)
}

func (e *InvalidDateError) Unwrap() error { return ErrInvalidDate }

// StoreError wraps a backing store failure with the operation that failed.
type StoreError struct {
	Op    string
	Write bool
	Err   error
}

func (e *StoreError) Error() string {
	kind := "read"
	if e.Write {
		kind = "write"
	}
	return fmt.Sprintf("store %s %s: %v", kind, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool {
	if e.Write {
		return target == ErrStoreWrite
	}
	return target == ErrStoreRead
}

// ReadError wraps err as a StoreError for a read. nil stays nil.
func ReadError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// WriteError wraps err as a StoreError for a write. Conflicts pass through
// untouched so IsConflict keeps working. nil stays nil.
func WriteError(op string, err error) error {
	if err == nil || IsConflict(err) {
		return err
	}
	return &StoreError{Op: op, Write: true, Err: err}
}

// DeliveryError is a failed send for one contributor.
type DeliveryError struct {
	ContributorID ContributorID
	Email         string
	Err           error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s (%s): %v", e.Email, e.ContributorID, e.Err)
}

func (e *DeliveryError) Unwrap() []error { return []error{ErrDelivery, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict returns true for unique-constraint races, which are no-ops.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateEvent) ||
		errors.Is(err, ErrDuplicateContributor) ||
		errors.Is(err, ErrDuplicateMember) ||
		errors.Is(err, ErrDuplicateCommunity)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCommunityNotFound) ||
		errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrContributorNotFound)
}

// IsRetryable returns true if a later run may succeed where this one failed.
func IsRetryable(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrDelivery) ||
		errors.Is(err, ErrStoreRead) ||
		errors.Is(err, ErrStoreWrite)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrCommunityInactive) ||
		errors.Is(err, ErrAlreadyPaid)
}
