// Package errors provides custom error types for the index engine.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Standard sentinel errors
var (
	ErrNoTradingDays          = errors.New("no valid trading day in input")
	ErrUnusableMaturity       = errors.New("unusable maturity")
	ErrInsufficientMaturities = errors.New("fewer than two usable maturities")
	ErrDegenerateTerm         = errors.New("selected maturities share the same time to expiry")
	ErrNegativeVariance       = errors.New("interpolated variance is negative")
	ErrUnresolvableExpiry     = errors.New("expiry beyond last trading day")
	ErrConfigInvalid          = errors.New("invalid configuration")
	ErrInputFormat            = errors.New("invalid input format")
	ErrDatabaseError          = errors.New("database error")
	ErrRunNotFound            = errors.New("run not found")
	ErrInsufficientSamples    = errors.New("not enough samples")
)

const dateLayout = "2006-01-02"

// MaturityError describes why one (date, expiry) group could not produce a variance.
type MaturityError struct {
	Date   time.Time
	Expiry time.Time
	Reason string
	Err    error
}

func (e *MaturityError) Error() string {
	return fmt.Sprintf("maturity %s/%s: %s: %v",
		e.Date.Format(dateLayout), e.Expiry.Format(dateLayout), e.Reason, e.Err)
}

func (e *MaturityError) Unwrap() error {
	return e.Err
}

// NewMaturityError creates a new MaturityError wrapping ErrUnusableMaturity.
func NewMaturityError(date, expiry time.Time, reason string) *MaturityError {
	return &MaturityError{
		Date:   date,
		Expiry: expiry,
		Reason: reason,
		Err:    ErrUnusableMaturity,
	}
}

// DayError ties a per-day failure to its trading date.
type DayError struct {
	Date time.Time
	Err  error
}

func (e *DayError) Error() string {
	return fmt.Sprintf("day %s: %v", e.Date.Format(dateLayout), e.Err)
}

func (e *DayError) Unwrap() error {
	return e.Err
}

// NewDayError creates a new DayError.
func NewDayError(date time.Time, err error) *DayError {
	return &DayError{Date: date, Err: err}
}

// ValidationError represents a configuration or input validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DataError represents an input or storage error tied to a data source.
type DataError struct {
	Source  string
	Message string
	Err     error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s]: %s: %v", e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s]: %s", e.Source, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(source, message string, err error) *DataError {
	return &DataError{
		Source:  source,
		Message: message,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
