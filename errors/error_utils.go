// Package errors provides coded errors and the helpers used to classify them when deciding
// how a mining round recovers.
package errors

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// StaleStateSignature is the program error returned when a submission references ledger
// state that has already been consumed by another transaction.
const StaleStateSignature = "custom program error: 0x3"

// IsRetryableError determines if the round should be retried after this error.
// Fatal classes (configuration, compute invariant, signing constraint, invalid argument)
// are never retryable.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if IsContextError(err) || IsFatalError(err) {
		return false
	}

	switch CodeOf(err) {
	case ERR_NETWORK,
		ERR_NETWORK_TIMEOUT,
		ERR_INVALID_RESPONSE,
		ERR_AUTHENTICATION,
		ERR_SUBMISSION_REJECTED,
		ERR_STALE_STATE,
		ERR_EXHAUSTED,
		ERR_NOT_FOUND,
		ERR_SERVICE_UNAVAILABLE,
		ERR_SERVICE_ERROR:
		return true
	}

	return IsNetworkError(err)
}

// IsFatalError reports whether the error indicates a bug or a misconfiguration that
// retrying cannot fix.
func IsFatalError(err error) bool {
	if err == nil {
		return false
	}

	return Is(err, ErrConfiguration) ||
		Is(err, ErrComputeInvariant) ||
		Is(err, ErrSigningConstraint) ||
		Is(err, ErrInvalidArgument)
}

// IsStaleStateError reports whether the error (or its message) carries the stale/duplicate
// state signature.
func IsStaleStateError(err error) bool {
	if err == nil {
		return false
	}

	if Is(err, ErrStaleState) {
		return true
	}

	return strings.Contains(err.Error(), StaleStateSignature)
}

// IsNetworkError determines if an error is transport related.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	if Is(err, ErrNetwork) || Is(err, ErrNetworkTimeout) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	networkStrings := []string{
		"connection refused",
		"connection reset",
		"no such host",
		"dial tcp",
		"i/o timeout",
		"broken pipe",
	}

	for _, s := range networkStrings {
		if strings.Contains(errStr, s) {
			return true
		}
	}

	return false
}

// IsContextError determines if an error is related to context cancellation or deadline.
func IsContextError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	code := CodeOf(err)

	return code == ERR_CONTEXT_CANCELED || code == ERR_CONTEXT
}

// GetErrorCategory returns a short label for logs and metrics.
func GetErrorCategory(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsContextError(err):
		return "context"
	case IsStaleStateError(err):
		return "stale"
	case Is(err, ErrAuthentication):
		return "authentication"
	case IsFatalError(err):
		return "fatal"
	case Is(err, ErrSubmissionRejected):
		return "rejected"
	case IsNetworkError(err):
		return "transport"
	case Is(err, ErrExhausted):
		return "exhausted"
	default:
		return "other"
	}
}

// FromGRPC maps an error returned by a gRPC call onto the error taxonomy.
// The message is the operation that failed and is used as the outer error message.
func FromGRPC(err error, message string, params ...interface{}) error {
	if err == nil {
		return nil
	}

	var tErr *Error
	if errors.As(err, &tErr) {
		return err
	}

	st, ok := status.FromError(err)
	if !ok {
		return New(ERR_NETWORK, message, append(params, err)...)
	}

	if strings.Contains(st.Message(), StaleStateSignature) {
		return New(ERR_STALE_STATE, message, append(params, err)...)
	}

	switch st.Code() {
	case codes.Unavailable, codes.Aborted:
		return New(ERR_NETWORK, message, append(params, err)...)
	case codes.DeadlineExceeded:
		return New(ERR_NETWORK_TIMEOUT, message, append(params, err)...)
	case codes.Canceled:
		return New(ERR_CONTEXT_CANCELED, message, append(params, err)...)
	case codes.Unauthenticated, codes.PermissionDenied:
		return New(ERR_AUTHENTICATION, message, append(params, err)...)
	default:
		return New(ERR_SUBMISSION_REJECTED, message, append(params, err)...)
	}
}
