package domain

import "fmt"

const (
	MinChargeAmount int64 = 500
	MaxUseAmount    int64 = 5000
	MaxHoldPoint    int64 = 100000
)

func ValidateChargeAmount(amount int64) error {
	if amount < MinChargeAmount {
		return fmt.Errorf("%w: %d < %d", ErrBelowMinCharge, amount, MinChargeAmount)
	}
	return nil
}

func ValidateUseAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	if amount > MaxUseAmount {
		return fmt.Errorf("%w: %d > %d", ErrExceedsMaxUse, amount, MaxUseAmount)
	}
	return nil
}

func ValidateMaxHold(currentPoint, amount int64) error {
	if amount > MaxHoldPoint-currentPoint {
		return fmt.Errorf("%w: %d + %d > %d", ErrExceedsMaxHold, currentPoint, amount, MaxHoldPoint)
	}
	return nil
}

func ValidateSufficientBalance(currentPoint, amount int64) error {
	if amount > currentPoint {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, currentPoint, amount)
	}
	return nil
}
