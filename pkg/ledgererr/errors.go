// Package ledgererr defines the error kinds shared by every ledger component.
// Callers branch on these with errors.Is; components wrap them with context
// via fmt.Errorf("...: %w", ...).
package ledgererr

import "errors"

var (
	// ErrUnauthorized means the caller lacks a required role or capability.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound means a referenced action, promise, stake, or claim does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSessionOwnership means the caller is not the orchestrator that opened
	// the referenced action.
	ErrSessionOwnership = errors.New("caller is not the original orchestrator for this action")

	// ErrInvalidState means the entity is not in the state the operation requires.
	ErrInvalidState = errors.New("invalid state")

	// ErrDeadlineExceeded means the promise deadline has passed.
	ErrDeadlineExceeded = errors.New("promise deadline has passed")

	// ErrDeadlineNotReached means the promise deadline has not passed yet.
	ErrDeadlineNotReached = errors.New("promise deadline has not passed")

	// ErrDuplicateStake means a stake already exists for the purpose id.
	ErrDuplicateStake = errors.New("stake already exists for this purpose")

	// ErrInsufficientLiquidReputation means the requested stake exceeds
	// score - totalStaked.
	ErrInsufficientLiquidReputation = errors.New("insufficient liquid reputation")

	// ErrAlreadyReleased means the stake was released before.
	ErrAlreadyReleased = errors.New("stake already released")

	// ErrFeeTransferFailed means the protocol fee could not be collected.
	ErrFeeTransferFailed = errors.New("protocol fee transfer failed")

	// ErrTransferFailed means the external asset transfer reported failure.
	ErrTransferFailed = errors.New("asset transfer failed")

	// ErrDelinquentUser means a reputation increase was attempted against a
	// delinquent identity.
	ErrDelinquentUser = errors.New("user is delinquent")

	// ErrInvalidAmount means a zero or negative amount was supplied where a
	// positive one is required.
	ErrInvalidAmount = errors.New("amount must be positive")
)
