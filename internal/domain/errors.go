package domain

import "errors"

var (
	ErrBelowMinCharge      = errors.New("charge amount is below the minimum")
	ErrExceedsMaxUse       = errors.New("use amount exceeds the maximum")
	ErrExceedsMaxHold      = errors.New("balance would exceed the maximum hold")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidType         = errors.New("invalid transaction type")
	ErrInvalidUserID       = errors.New("user id must be positive")
	ErrUserNotFound        = errors.New("user not found")
	ErrLockTimeout         = errors.New("timed out waiting for user lock")
	ErrQueueFull           = errors.New("worker queue is full")
)

// IsRejection reports whether err is a business rule refusal rather than an
// infrastructure failure.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrBelowMinCharge,
		ErrExceedsMaxUse,
		ErrExceedsMaxHold,
		ErrInsufficientBalance,
		ErrInvalidAmount,
		ErrInvalidType,
		ErrInvalidUserID,
		ErrUserNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
