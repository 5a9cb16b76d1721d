package services

import (
	"errors"
	"fmt"

	"pear/internal/models"
)

var (
	ErrInvalidQuantity       = errors.New("quantity must be a positive integer")
	ErrEmptyCart             = errors.New("cannot place an order with an empty cart")
	ErrInvalidMode           = errors.New("unknown order mode")
	ErrInvalidDeliveryOption = errors.New("unknown delivery option")
	ErrInvalidStock          = errors.New("stock must be a non-negative integer")
	ErrInvalidProduct        = errors.New("invalid product")
	ErrInvalidStatus         = errors.New("unknown order status")

	ErrSessionNotFound = errors.New("session not found")
	ErrNoActiveOrder   = errors.New("no active order")
	ErrOrderInProgress = errors.New("an order is still in progress")

	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError reports input rejected before any state was changed.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ProviderError reports a Message Provider failure for a status.
type ProviderError struct {
	Status models.OrderStatus
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("message provider failed for %s: %v", e.Status, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
