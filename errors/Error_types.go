package errors

var (
	ErrUnknown            = New(ERR_UNKNOWN, "unknown error")
	ErrInvalidArgument    = New(ERR_INVALID_ARGUMENT, "invalid argument")
	ErrThresholdExceeded  = New(ERR_THRESHOLD_EXCEEDED, "threshold exceeded")
	ErrNotFound           = New(ERR_NOT_FOUND, "not found")
	ErrProcessing         = New(ERR_PROCESSING, "error processing")
	ErrConfiguration      = New(ERR_CONFIGURATION, "configuration error")
	ErrContext            = New(ERR_CONTEXT, "context error")
	ErrContextCanceled    = New(ERR_CONTEXT_CANCELED, "context canceled")
	ErrError              = New(ERR_ERROR, "generic error")
	ErrNetwork            = New(ERR_NETWORK, "network error")
	ErrNetworkTimeout     = New(ERR_NETWORK_TIMEOUT, "network timeout")
	ErrInvalidResponse    = New(ERR_INVALID_RESPONSE, "invalid response")
	ErrAuthentication     = New(ERR_AUTHENTICATION, "authentication rejected")
	ErrSubmissionRejected = New(ERR_SUBMISSION_REJECTED, "submission rejected")
	ErrStaleState         = New(ERR_STALE_STATE, "stale ledger state")
	ErrComputeInvariant   = New(ERR_COMPUTE_INVARIANT, "compute invariant violated")
	ErrExhausted          = New(ERR_EXHAUSTED, "attempts exhausted")
	ErrSigningConstraint  = New(ERR_SIGNING_CONSTRAINT, "signing constraint violated")
	ErrServiceUnavailable = New(ERR_SERVICE_UNAVAILABLE, "service unavailable")
	ErrServiceError       = New(ERR_SERVICE_ERROR, "service error")
	ErrStorageError       = New(ERR_STORAGE_ERROR, "storage error")
)

// errors initialization functions

func NewUnknownError(message string, params ...interface{}) error {
	return New(ERR_UNKNOWN, message, params...)
}
func NewInvalidArgumentError(message string, params ...interface{}) error {
	return New(ERR_INVALID_ARGUMENT, message, params...)
}
func NewThresholdExceededError(message string, params ...interface{}) error {
	return New(ERR_THRESHOLD_EXCEEDED, message, params...)
}
func NewNotFoundError(message string, params ...interface{}) error {
	return New(ERR_NOT_FOUND, message, params...)
}
func NewProcessingError(message string, params ...interface{}) error {
	return New(ERR_PROCESSING, message, params...)
}
func NewConfigurationError(message string, params ...interface{}) error {
	return New(ERR_CONFIGURATION, message, params...)
}
func NewContextError(message string, params ...interface{}) error {
	return New(ERR_CONTEXT, message, params...)
}
func NewContextCanceledError(message string, params ...interface{}) error {
	return New(ERR_CONTEXT_CANCELED, message, params...)
}
func NewError(message string, params ...interface{}) error {
	return New(ERR_ERROR, message, params...)
}
func NewNetworkError(message string, params ...interface{}) error {
	return New(ERR_NETWORK, message, params...)
}
func NewNetworkTimeoutError(message string, params ...interface{}) error {
	return New(ERR_NETWORK_TIMEOUT, message, params...)
}
func NewInvalidResponseError(message string, params ...interface{}) error {
	return New(ERR_INVALID_RESPONSE, message, params...)
}
func NewAuthenticationError(message string, params ...interface{}) error {
	return New(ERR_AUTHENTICATION, message, params...)
}
func NewSubmissionRejectedError(message string, params ...interface{}) error {
	return New(ERR_SUBMISSION_REJECTED, message, params...)
}
func NewStaleStateError(message string, params ...interface{}) error {
	return New(ERR_STALE_STATE, message, params...)
}
func NewComputeInvariantError(message string, params ...interface{}) error {
	return New(ERR_COMPUTE_INVARIANT, message, params...)
}
func NewExhaustedError(message string, params ...interface{}) error {
	return New(ERR_EXHAUSTED, message, params...)
}
func NewSigningConstraintError(message string, params ...interface{}) error {
	return New(ERR_SIGNING_CONSTRAINT, message, params...)
}
func NewServiceUnavailableError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_UNAVAILABLE, message, params...)
}
func NewServiceError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_ERROR, message, params...)
}
func NewStorageError(message string, params ...interface{}) error {
	return New(ERR_STORAGE_ERROR, message, params...)
}
