package types

import (
	"errors"
	"strconv"
)

// Errors returned by ParseAmount, in the order the checks run.
var (
	ErrAmountNotInteger  = errors.New("amount must be a positive integer")
	ErrAmountNotPositive = errors.New("amount must be greater than zero")
	ErrAmountTooLarge    = errors.New("amount is too large")
)

// ParseAmount parses a command-line token amount.
//
// Only plain ASCII decimal digits are accepted: no sign, no whitespace,
// no separators. Zero parses but is rejected with ErrAmountNotPositive so
// callers can report the two failures differently.
func ParseAmount(s string) (int64, error) {
	if !IsDigits(s) {
		return 0, ErrAmountNotInteger
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrAmountTooLarge
	}
	if n <= 0 {
		return 0, ErrAmountNotPositive
	}
	return n, nil
}

// IsDigits reports whether s is non-empty and made only of '0'..'9'.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
