package utils

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// MaskAccountNumber keeps the last four digits of a bank account number.
func MaskAccountNumber(account string) string {
	account = strings.TrimSpace(account)
	if len(account) <= 4 {
		return account
	}
	return strings.Repeat("*", len(account)-4) + account[len(account)-4:]
}

// NewRequestCode returns a unique, time-sortable withdrawal request code.
func NewRequestCode() string {
	return "WD-" + ulid.Make().String()
}

// IsDigits reports whether s is exactly n ASCII digits.
func IsDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
