// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrConfigInvalid         = errors.New("invalid configuration")
	ErrConfigTemplateCreated = errors.New("configuration template created, edit it and restart")
	ErrDatabaseError         = errors.New("database error")

	// Watchlist
	ErrInvalidSymbol    = errors.New("invalid symbol")
	ErrInvalidTarget    = errors.New("invalid target")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrDuplicateSymbol  = errors.New("symbol already in watchlist")
	ErrSymbolNotFound   = errors.New("symbol not found")

	// Price fetch
	ErrFetchTimeout      = errors.New("operation timed out")
	ErrFetchTransport    = errors.New("transport error")
	ErrRateLimited       = errors.New("rate limited")
	ErrDataUnavailable   = errors.New("data unavailable")
	ErrMalformedResponse = errors.New("malformed response")

	// Notification
	ErrDeliveryFailed = errors.New("notification delivery failed")
)

// FetchKind classifies a failed price fetch.
type FetchKind string

const (
	FetchTimeout           FetchKind = "FetchTimeout"
	FetchTransportError    FetchKind = "FetchTransportError"
	FetchRateLimited       FetchKind = "FetchRateLimited"
	FetchDataUnavailable   FetchKind = "FetchDataUnavailable"
	FetchMalformedResponse FetchKind = "FetchMalformedResponse"
)

// NotifyDeliveryFailed is the kind reported for a failed notification.
const NotifyDeliveryFailed = "NotifyDeliveryFailed"

func (k FetchKind) sentinel() error {
	switch k {
	case FetchTimeout:
		return ErrFetchTimeout
	case FetchRateLimited:
		return ErrRateLimited
	case FetchDataUnavailable:
		return ErrDataUnavailable
	case FetchMalformedResponse:
		return ErrMalformedResponse
	default:
		return ErrFetchTransport
	}
}

// FetchError represents a failed price lookup for a single symbol.
type FetchError struct {
	Symbol string
	Kind   FetchKind
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch error [%s] %s: %v", e.Kind, e.Symbol, e.Err)
	}
	return fmt.Sprintf("fetch error [%s] %s", e.Kind, e.Symbol)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *FetchError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind.sentinel(), e.Err}
	}
	return []error{e.Kind.sentinel()}
}

// NewFetchError creates a new FetchError.
func NewFetchError(symbol string, kind FetchKind, err error) *FetchError {
	return &FetchError{
		Symbol: symbol,
		Kind:   kind,
		Err:    err,
	}
}

// KindOf returns the fetch kind of err, defaulting to a transport error.
func KindOf(err error) FetchKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	switch {
	case errors.Is(err, ErrFetchTimeout):
		return FetchTimeout
	case errors.Is(err, ErrRateLimited):
		return FetchRateLimited
	case errors.Is(err, ErrDataUnavailable):
		return FetchDataUnavailable
	case errors.Is(err, ErrMalformedResponse):
		return FetchMalformedResponse
	}
	return FetchTransportError
}

// NotifyError represents a failed alert delivery.
type NotifyError struct {
	Symbol  string
	Channel string
	Err     error
}

func (e *NotifyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notify error [%s] %s: %v", e.Channel, e.Symbol, e.Err)
	}
	return fmt.Sprintf("notify error [%s] %s", e.Channel, e.Symbol)
}

func (e *NotifyError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDeliveryFailed, e.Err}
	}
	return []error{ErrDeliveryFailed}
}

// NewNotifyError creates a new NotifyError.
func NewNotifyError(symbol, channel string, err error) *NotifyError {
	return &NotifyError{
		Symbol:  symbol,
		Channel: channel,
		Err:     err,
	}
}

// PersistError represents a failed write to the watch record store.
// When returned after an evaluation pass the in-memory collection already
// holds the new state, so memory and disk have diverged.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist error [%s]: in-memory watchlist and stored state diverged: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() []error {
	return []error{ErrDatabaseError, e.Err}
}

// NewPersistError creates a new PersistError.
func NewPersistError(op string, err error) *PersistError {
	return &PersistError{
		Op:  op,
		Err: err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
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
