// Package apperr defines the structured error taxonomy shared by the core,
// the application services and the adapters.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code identifies a class of failure.
type Code string

// Error codes.
const (
	CodeInvalidQuantity     Code = "INVALID_QUANTITY"
	CodeInvalidInterval     Code = "INVALID_INTERVAL"
	CodeConstraintViolation Code = "CONSTRAINT_VIOLATION"
	CodeProviderUnavailable Code = "PROVIDER_UNAVAILABLE"
	CodeNoValidCandidates   Code = "NO_VALID_CANDIDATES"
	CodeInvalidTransition   Code = "INVALID_TRANSITION"
	CodeSessionNotFound     Code = "SESSION_NOT_FOUND"
	CodeSessionBusy         Code = "SESSION_BUSY"
	CodeEquipmentConflict   Code = "EQUIPMENT_CONFLICT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeInvalidInput        Code = "INVALID_INPUT"
)

// Error is an error carrying a code and enough context (order, equipment,
// rule, state) to render an actionable message.
type Error struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+e.Details[k])
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, " "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a single detail to the error.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Wrap attaches an underlying cause.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// Retryable reports whether the caller may retry the same operation.
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodeProviderUnavailable, CodeNoValidCandidates, CodeSessionBusy, CodeEquipmentConflict:
		return true
	}
	return false
}

// New creates an error with the given code.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether any error in err's chain is an *Error with the code.
func Is(err error, code Code) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// InvalidQuantity reports an order constructed with a non-positive quantity.
func InvalidQuantity(orderID string, quantity float64) *Error {
	return New(CodeInvalidQuantity, "order quantity must be positive, got %g kg", quantity).
		WithDetail("order", orderID)
}

// InvalidInterval reports a schedule item whose end is not after its start.
func InvalidInterval(orderID, equipmentID string) *Error {
	return New(CodeInvalidInterval, "schedule item end must be after start").
		WithDetail("order", orderID).
		WithDetail("equipment", equipmentID)
}

// ProviderUnavailable wraps a transport, parse or timeout failure of an
// external provider.
func ProviderUnavailable(provider string, err error) *Error {
	return New(CodeProviderUnavailable, "%s provider unavailable", provider).
		WithDetail("provider", provider).
		Wrap(err)
}

// InvalidTransition reports an attempt to skip or reorder workflow states.
func InvalidTransition(from, to string) *Error {
	return New(CodeInvalidTransition, "cannot move from %s to %s", from, to).
		WithDetail("from", from).
		WithDetail("to", to)
}
