package engine

import "errors"

// Sentinel errors for the custody lifecycle. Nothing in this package is
// permitted to terminate the host process; callers degrade to a logged,
// recoverable state.
var (
	// ErrNoCellsAvailable means booking cannot proceed past pickup; the
	// detainee remains in AwaitingPickup and is retried on the next vacancy.
	ErrNoCellsAvailable = errors.New("no cells available")

	// ErrInvalidNegotiation rejects a bail counter-offer outside the
	// allowed bounds. No state changes.
	ErrInvalidNegotiation = errors.New("bail negotiation outside allowed bounds")

	// ErrMissingRecord marks operations referencing a subject with no live
	// record of the expected kind. Treated as a debug-level no-op.
	ErrMissingRecord = errors.New("no live record for subject")

	// ErrPersistenceCorrupt marks a loaded record that failed validation.
	// The engine falls back to a fresh default record.
	ErrPersistenceCorrupt = errors.New("persisted record failed validation")

	// ErrFineNotPayable rejects a fine payment when the sentence does not
	// allow one or the booking has progressed past pickup.
	ErrFineNotPayable = errors.New("fine not payable for subject")
)
