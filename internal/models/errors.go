package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrPinNotSet              = errors.New("transaction pin is not set")
	ErrPinMismatch            = errors.New("transaction pin is incorrect")
	ErrTwoFARequired          = errors.New("two-factor code is required")
	ErrTwoFAMismatch          = errors.New("two-factor code is incorrect")
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrTooManyPending         = errors.New("too many pending withdrawal requests")
)

// ValidationError is a caller-correctable input problem. It is always
// reported before any wallet lock is taken.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type BalanceError struct {
	Currency  CurrencyType
	Available string
	Required  string
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: available %s, required %s", e.Currency, e.Available, e.Required)
}

func (e *BalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// TransitionError names both the status the entity was found in and the
// status the caller tried to move it to.
type TransitionError struct {
	Entity    string
	Current   string
	Attempted string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.Current, e.Attempted)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidStateTransition }

type NotFoundError struct {
	Entity string
	Key    any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
