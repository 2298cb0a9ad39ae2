package service

import "fmt"

// Authorize reports whether balance covers charge. No partial charges.
func Authorize(balance, charge int64) bool {
	return balance >= charge
}

// ValidateAmount rejects non-positive charges.
func ValidateAmount(charge int64) error {
	if charge <= 0 {
		return fmt.Errorf("%w: charge amount must be positive, got %d", ErrInvalidArgument, charge)
	}
	return nil
}

// DefaultChargeAmount is the fixed charge used when a caller does not pass one:
// one twentieth of the default balance.
func DefaultChargeAmount(defaultBalance int64) int64 {
	return defaultBalance / 20
}
