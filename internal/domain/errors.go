package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for reporting and retry policy. None of
// these are retried automatically; a failed fetch or delivery is recorded in
// the cycle summary and picked up on the next scheduled or manual run.
type ErrorKind string

const (
	// KindConfiguration marks user-fixable problems: missing credentials,
	// unset webhook URL, a location with neither postal code nor coordinates.
	KindConfiguration ErrorKind = "configuration"
	// KindRateLimited marks an upstream HTTP 429.
	KindRateLimited ErrorKind = "rate_limited"
	// KindProvider marks any other non-2xx upstream response.
	KindProvider ErrorKind = "provider"
	// KindNetwork marks timeouts and connection failures.
	KindNetwork ErrorKind = "network"
	// KindDelivery marks a non-2xx response from the outbound webhook.
	KindDelivery ErrorKind = "delivery"
)

// Error carries a kind, the failing operation, and an optional upstream
// HTTP status and wrapped cause.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Message)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is (or wraps) a domain Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// NewConfigurationError builds a user-fixable configuration failure.
func NewConfigurationError(op, message string) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: message}
}

// NewRateLimitedError builds an upstream rate-limit failure.
func NewRateLimitedError(op string) *Error {
	return &Error{Kind: KindRateLimited, Op: op, Message: "rate limited by upstream", Status: 429}
}

// NewProviderError builds an upstream failure carrying the status and the
// upstream error description when one was available.
func NewProviderError(op string, status int, message string) *Error {
	if message == "" {
		message = "upstream request failed"
	}
	return &Error{Kind: KindProvider, Op: op, Message: message, Status: status}
}

// NewNetworkError wraps a transport-level failure (timeout, refused connection).
func NewNetworkError(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Message: "request failed", Err: err}
}

// NewDeliveryError builds a webhook delivery failure.
func NewDeliveryError(op string, status int, message string) *Error {
	if message == "" {
		message = "webhook rejected record"
	}
	return &Error{Kind: KindDelivery, Op: op, Message: message, Status: status}
}
