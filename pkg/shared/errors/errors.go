// Package errors provides structured operation errors shared across every
// component of the control plane. Handlers and controllers build on top of
// these instead of ad-hoc fmt.Errorf calls so that logs and HTTP responses
// can consistently derive a Kind from any returned error.
package errors

import (
	"fmt"
	"strings"
)

// Kind classifies an error for propagation decisions (see design notes on
// error handling): controllers swallow everything at the tick boundary,
// HTTP handlers map Kind to a status code, and orchestrators treat some
// kinds as recoverable.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindUpstreamUnavailable
	KindUpstreamInvalid
	KindTransient
)

// OperationError is the common error shape: what we were doing, to/on what
// component and resource, and the underlying cause.
type OperationError struct {
	Kind      Kind
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	var b strings.Builder
	b.WriteString("failed to ")
	b.WriteString(e.Operation)
	if e.Component != "" {
		b.WriteString(", component: ")
		b.WriteString(e.Component)
	}
	if e.Resource != "" {
		b.WriteString(", resource: ")
		b.WriteString(e.Resource)
	}
	if e.Cause != nil {
		b.WriteString(", cause: ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// FailedTo builds the common "failed to <action>[, cause: <cause>]" error.
func FailedTo(action string, cause error) error {
	if cause == nil {
		return &OperationError{Operation: action}
	}
	return &OperationError{Operation: action, Cause: cause}
}

// FailedToWithDetails attaches component/resource context to FailedTo.
func FailedToWithDetails(operation, component, resource string, cause error) error {
	return &OperationError{
		Operation: operation,
		Component: component,
		Resource:  resource,
		Cause:     cause,
	}
}

// Wrapf wraps err with additional context, returning nil for a nil err.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// DatabaseError marks a failure against the State Store.
func DatabaseError(operation string, cause error) error {
	return &OperationError{
		Kind:      KindInternal,
		Operation: operation,
		Component: "database",
		Cause:     cause,
	}
}

// NetworkError marks a failure reaching an external endpoint (cluster API,
// metrics store, LLM, Swagger probe).
func NetworkError(operation, endpoint string, cause error) error {
	return &OperationError{
		Kind:      KindUpstreamUnavailable,
		Operation: operation,
		Component: "network",
		Resource:  endpoint,
		Cause:     cause,
	}
}

// ValidationError reports a field-level validation failure.
func ValidationError(field, reason string) error {
	return fmt.Errorf("validation failed for field %s: %s", field, reason)
}

// ConfigurationError reports an invalid configuration setting.
func ConfigurationError(setting, reason string) error {
	return fmt.Errorf("configuration error for setting %s: %s", setting, reason)
}

// TimeoutError reports a deadline exceeded while performing an action.
func TimeoutError(action, after string) error {
	return fmt.Errorf("timeout while %s after %s", action, after)
}

// AuthenticationError reports a failed authentication attempt.
func AuthenticationError(reason string) error {
	return fmt.Errorf("authentication failed: %s", reason)
}

// AuthorizationError reports an insufficient-permissions failure.
func AuthorizationError(action, resource string) error {
	return fmt.Errorf("authorization failed: insufficient permissions to %s %s", action, resource)
}

// ParseError reports a failure parsing a document of a given format.
func ParseError(subject, format string, cause error) error {
	return &OperationError{
		Kind:      KindUpstreamInvalid,
		Operation: fmt.Sprintf("parse %s as %s", subject, format),
		Component: "parser",
		Cause:     cause,
	}
}

// NotFound wraps a missing-entity condition.
func NotFound(resource string) error {
	return &OperationError{Kind: KindNotFound, Operation: "find " + resource, Resource: resource}
}

// Conflict wraps an invariant violation.
func Conflict(operation, reason string) error {
	return &OperationError{Kind: KindConflict, Operation: operation, Cause: fmt.Errorf("%s", reason)}
}

// KindOf extracts the Kind from err, defaulting to KindInternal when err is
// not (or does not wrap) an *OperationError.
func KindOf(err error) Kind {
	var opErr *OperationError
	for e := err; e != nil; {
		if oe, ok := e.(*OperationError); ok {
			opErr = oe
			break
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	if opErr == nil {
		return KindInternal
	}
	return opErr.Kind
}

// IsRetryable reports whether err looks like a transient condition worth
// retrying (timeouts, connection resets, temporary unavailability).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "connection refused", "connection reset", "unavailable", "temporary", "eof"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Chain joins multiple non-nil errors into one, or returns nil if all are nil.
func Chain(errs ...error) error {
	var msgs []string
	for _, e := range errs {
		if e != nil {
			msgs = append(msgs, e.Error())
		}
	}
	switch len(msgs) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s", msgs[0])
	default:
		return fmt.Errorf("multiple errors: %s", strings.Join(msgs, "; "))
	}
}
