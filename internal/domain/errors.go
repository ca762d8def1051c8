package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Invalid-input errors: rejected before any state mutation.
var (
	// ErrInvalidGuestID is returned when a guest identifier fails the
	// surface-format check (8–64 chars, alphanumeric/hyphen/underscore).
	ErrInvalidGuestID = errors.New("invalid guest identifier format")

	// ErrInvalidMarket is returned when the market kind is not SYNTHETIC or
	// PREDICTION.
	ErrInvalidMarket = errors.New("invalid market: must be SYNTHETIC or PREDICTION")

	// ErrInvalidSide is returned when the trade side is not BUY or SELL.
	ErrInvalidSide = errors.New("invalid side: must be BUY or SELL")

	// ErrInvalidOutcome is returned when the prediction outcome is not YES or NO.
	ErrInvalidOutcome = errors.New("invalid outcome: must be YES or NO")

	// ErrInvalidAmount is returned when an amount or quantity is missing,
	// non-finite, or non-positive.
	ErrInvalidAmount = errors.New("amount must be a positive decimal")

	// ErrInvalidUsername is returned when a username fails validation
	// (3–20 chars, alphanumerics and underscore only).
	ErrInvalidUsername = errors.New("username must be 3-20 characters of letters, digits, or underscore")

	// ErrInvalidPrice is returned when a manual price override is missing or
	// non-positive.
	ErrInvalidPrice = errors.New("price must be a positive decimal")

	// ErrInvalidSkipCount is returned when a skip-sessions request is outside
	// the 1..20 batch bound.
	ErrInvalidSkipCount = errors.New("session skip count must be between 1 and 20")
)

// Trade rejections.
var (
	// ErrInsufficientFunds is returned when a BUY amount exceeds the
	// account's available cash.
	ErrInsufficientFunds = errors.New("insufficient cash balance")

	// ErrInsufficientInventory is returned when a SELL quantity exceeds the
	// matching open lots beyond the rounding epsilon.
	ErrInsufficientInventory = errors.New("sell quantity exceeds open position")
)

// Not-found errors.
var (
	// ErrUnknownTicker is returned when no ticker in the roster matches.
	ErrUnknownTicker = errors.New("unknown ticker")

	// ErrUnknownInstrument is returned when no prediction instrument matches.
	ErrUnknownInstrument = errors.New("unknown instrument")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// invalidInputErrors collects every pre-mutation validation sentinel so that
// IsInvalidInput stays in sync automatically.
var invalidInputErrors = []error{
	ErrInvalidGuestID,
	ErrInvalidMarket,
	ErrInvalidSide,
	ErrInvalidOutcome,
	ErrInvalidAmount,
	ErrInvalidUsername,
	ErrInvalidPrice,
	ErrInvalidSkipCount,
}

// IsInvalidInput returns true when err (or any error in its chain) is one of
// the malformed-input errors.  Use this when translating engine errors to
// HTTP 400 responses.
func IsInvalidInput(err error) bool {
	for _, target := range invalidInputErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound returns true for unknown ticker/instrument lookups.  Accounts
// are deliberately excluded: an unknown-but-valid guest id auto-creates an
// account instead of failing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownTicker) || errors.Is(err, ErrUnknownInstrument)
}

// IsRejection returns true for solvency and inventory rejections — requests
// that were well-formed but cannot be honoured against current state.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrInsufficientInventory)
}
