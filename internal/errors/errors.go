// Package errors provides a structured, Kind-tagged error type used across
// the zone-policy core so callers can branch on failure category instead of
// string-matching messages.
package errors

import (
	"errors"
	"fmt"
)

// Kind categorizes an error per the construction/runtime taxonomy in the
// zone-policy spec: construction errors are fatal to a run, runtime errors
// are recoverable and never propagate into the simulation event loop.
type Kind int

const (
	KindUnknown Kind = iota
	KindInternal
	KindInvalidGeometry
	KindNetworkInconsistent
	KindInvalidPolicy
	KindEmptyPopulation
	KindOrphanedEvent
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindInvalidGeometry:
		return "invalid_geometry"
	case KindNetworkInconsistent:
		return "network_inconsistent"
	case KindInvalidPolicy:
		return "invalid_policy"
	case KindEmptyPopulation:
		return "empty_population"
	case KindOrphanedEvent:
		return "orphaned_event"
	default:
		return "unknown"
	}
}

// Error is a structured error carrying a Kind and optional key/value
// attributes for diagnostic correlation (zoneId, linkId, vehicleId, ...).
type Error struct {
	Kind       Kind
	Message    string
	Underlying error
	Attributes map[string]any
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// New creates a new Error of the specified kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf creates a new Error of the specified kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error as a new Error of the specified kind.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Underlying: err}
}

// Wrapf wraps an existing error as a new Error of the specified kind with a
// formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Underlying: err}
}

// Attr attaches a diagnostic attribute to an error, wrapping non-Error values
// as KindInternal first.
func Attr(err error, key string, val any) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: KindInternal, Message: err.Error(), Underlying: err}
	}
	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[key] = val
	return e
}

// GetKind returns the Kind of err, or KindUnknown if it's not one of ours.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// GetAttributes collects attributes across the whole error chain, with the
// outermost error's values taking precedence.
func GetAttributes(err error) map[string]any {
	attrs := make(map[string]any)
	var e *Error
	cur := err
	for cur != nil {
		if !errors.As(cur, &e) {
			break
		}
		for k, v := range e.Attributes {
			if _, ok := attrs[k]; !ok {
				attrs[k] = v
			}
		}
		cur = e.Underlying
	}
	return attrs
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain matching target's type.
func As(err error, target any) bool { return errors.As(err, target) }

// Unwrap returns the result of calling err's Unwrap method, if any.
func Unwrap(err error) error { return errors.Unwrap(err) }
