package claim

import "errors"

var (
	// ErrUnauthorized signals the caller lacks the required capability.
	ErrUnauthorized = errors.New("claim: unauthorized")
	// ErrPaused signals the pause gate is active.
	ErrPaused = errors.New("claim: paused")
	// ErrEventNotFound signals the event id is unknown or already disabled
	// when the operation requires an active one to remove.
	ErrEventNotFound = errors.New("claim: event not found")
	// ErrEventInactive signals a claim or grant against a disabled event.
	ErrEventInactive = errors.New("claim: event inactive")
	// ErrNothingToClaim signals the claimant holds zero entitlement.
	ErrNothingToClaim = errors.New("claim: nothing to claim")
	// ErrInventoryEmpty signals a single-item event with no stock on hand.
	// Pool events do not short-circuit; they allocate zero instead.
	ErrInventoryEmpty = errors.New("claim: inventory empty")
	// ErrEmptyItemSet signals pool-event creation with no items.
	ErrEmptyItemSet = errors.New("claim: empty item set")
	// ErrZeroAmount signals an entitlement set to zero. Entitlements reach
	// zero only through claims, not through this call.
	ErrZeroAmount = errors.New("claim: zero amount")
	// ErrLengthMismatch signals batch arrays of different lengths.
	ErrLengthMismatch = errors.New("claim: length mismatch")
	// ErrEmptyBatch signals batch arrays with no entries.
	ErrEmptyBatch = errors.New("claim: empty batch")
)
