package service

import (
	"errors"
	"fmt"

	"github.com/mrkadirov2005/shopPos/internal/store"
)

const msgFieldsRequired = "All fields are required"

var ErrForbiddenShop = errors.New("shop is not accessible for this account")

// ValidationError names the first request field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return msgFieldsRequired
}

func (e *ValidationError) Unwrap() error {
	return store.ErrInvalidTransaction
}

// StorageError wraps a failure of the backing store. Its message is for logs
// only.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func missingField(field string) error {
	return &ValidationError{Field: field}
}

func invalidField(field string, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// classify passes caller-facing errors through unchanged and wraps the rest
// as storage failures.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var shortfall *store.ShortfallError
	var validation *ValidationError
	var storage *StorageError
	switch {
	case errors.As(err, &shortfall),
		errors.As(err, &validation),
		errors.As(err, &storage),
		errors.Is(err, ErrForbiddenShop),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrInvalidTransaction):
		return err
	}
	return &StorageError{Op: op, Err: err}
}
