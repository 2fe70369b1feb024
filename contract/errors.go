package contract

import "errors"

// Error kinds surfaced by ledger operations. Every failure is wrapped with
// operation context but remains dispatchable via errors.Is, so callers can
// decide whether to retry (e.g. after re-authorization) or abort.
var (
	// ErrPermission marks a caller that is neither the owner (for
	// administration) nor a currently-authorized controller (for everything
	// else).
	ErrPermission = errors.New("caller is not permitted to perform this operation")

	// ErrInoperative marks any mutating call made while the global
	// operational switch is off.
	ErrInoperative = errors.New("contract is currently not operational")

	// ErrAlreadyRegistered marks duplicate creation of an airline, a flight
	// key, or a flight status report.
	ErrAlreadyRegistered = errors.New("record is already registered")

	// ErrAlreadyAuthorized marks authorization of a controller that is
	// already in the authorized set.
	ErrAlreadyAuthorized = errors.New("controller is already authorized")

	// ErrNotAuthorized marks deauthorization of a controller that is not in
	// the authorized set.
	ErrNotAuthorized = errors.New("controller is not authorized")

	// ErrFlightNotFound marks an operation against a flight key that was
	// never registered.
	ErrFlightNotFound = errors.New("flight is not registered")

	// ErrZeroPayment marks a non-positive payment amount.
	ErrZeroPayment = errors.New("payment amount must be positive")

	// ErrOverflow marks an accumulator that would exceed the representable
	// range rather than wrap.
	ErrOverflow = errors.New("amount exceeds representable range")
)
