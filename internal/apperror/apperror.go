// Package apperror defines the error taxonomy shared by the service,
// repository and handler layers.
//
// Every domain failure is an *AppError wrapping one of the sentinels below.
// Callers classify errors with errors.Is; handlers translate the sentinel to
// an HTTP status.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")

	// Refined sentinels. Each wraps a base sentinel so errors.Is matches
	// both the refined and the base error.
	ErrNotInList        = fmt.Errorf("not in list: %w", ErrNotFound)
	ErrEmptyCart        = fmt.Errorf("empty cart: %w", ErrNotFound)
	ErrSelfSubscription = fmt.Errorf("self subscription: %w", ErrValidation)
)

type AppError struct {
	Err     error  // sentinel
	Message string // human-readable error message
	Field   string // optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource string, id any) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %v", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a duplicate of something that must be unique.
func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned when an operation needs an authenticated caller.
func Unauthorized() *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: "authentication credentials were not provided",
	}
}

// NotInList is returned when removing a recipe from a list it is not part of.
func NotInList(list string) *AppError {
	return &AppError{
		Err:     ErrNotInList,
		Message: fmt.Sprintf("recipe is not present in %s", list),
	}
}

func EmptyCart() *AppError {
	return &AppError{
		Err:     ErrEmptyCart,
		Message: "shopping cart is empty",
	}
}

func SelfSubscription() *AppError {
	return &AppError{
		Err:     ErrSelfSubscription,
		Message: "cannot subscribe to yourself",
	}
}
