package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"network", NewNetworkError("rpc down"), true},
		{"authentication", NewAuthenticationError("bad token"), true},
		{"stale state", NewStaleStateError("consumed"), true},
		{"rejected", NewSubmissionRejectedError("bundle dropped"), true},
		{"exhausted", NewExhaustedError("no bus"), true},
		{"configuration", NewConfigurationError("no fee payer"), false},
		{"compute invariant", NewComputeInvariantError("hash above target"), false},
		{"signing constraint", NewSigningConstraintError("too large"), false},
		{"context", context.Canceled, false},
		{"wrapped context", NewNetworkError("call", context.Canceled), false},
		{"plain dial error", errors.New("dial tcp 127.0.0.1:80: connection refused"), true},
		{"plain other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryableError(tt.err))
		})
	}
}

func TestIsStaleStateError(t *testing.T) {
	assert.True(t, IsStaleStateError(NewStaleStateError("x")))
	assert.True(t, IsStaleStateError(errors.New("Transaction simulation failed: custom program error: 0x3")))
	assert.True(t, IsStaleStateError(fmt.Errorf("outer: %w", NewServiceError("inner", NewStaleStateError("x")))))
	assert.False(t, IsStaleStateError(errors.New("custom program error: 0x1")))
	assert.False(t, IsStaleStateError(nil))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "none", GetErrorCategory(nil))
	assert.Equal(t, "context", GetErrorCategory(context.DeadlineExceeded))
	assert.Equal(t, "stale", GetErrorCategory(NewStaleStateError("x")))
	assert.Equal(t, "authentication", GetErrorCategory(NewAuthenticationError("x")))
	assert.Equal(t, "fatal", GetErrorCategory(NewSigningConstraintError("x")))
	assert.Equal(t, "rejected", GetErrorCategory(NewSubmissionRejectedError("x")))
	assert.Equal(t, "transport", GetErrorCategory(NewNetworkError("x")))
	assert.Equal(t, "exhausted", GetErrorCategory(NewExhaustedError("x")))
	assert.Equal(t, "other", GetErrorCategory(errors.New("x")))
}

func TestFromGRPC(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *Error
	}{
		{"unavailable", status.Error(codes.Unavailable, "connection closed"), ErrNetwork},
		{"deadline", status.Error(codes.DeadlineExceeded, "slow"), ErrNetworkTimeout},
		{"unauthenticated", status.Error(codes.Unauthenticated, "expired token"), ErrAuthentication},
		{"permission", status.Error(codes.PermissionDenied, "not whitelisted"), ErrAuthentication},
		{"invalid", status.Error(codes.InvalidArgument, "bundle too large"), ErrSubmissionRejected},
		{"stale", status.Error(codes.Internal, "simulation failed: custom program error: 0x3"), ErrStaleState},
		{"non status", errors.New("tls handshake failure"), ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromGRPC(tt.err, "[SendBundle] %s", "call")
			assert.True(t, Is(err, tt.want), "got %v", err)
			assert.True(t, errors.Is(err, tt.err))
		})
	}

	assert.Nil(t, FromGRPC(nil, "noop"))

	coded := NewAuthenticationError("already classified")
	assert.Same(t, coded, FromGRPC(coded, "noop"))
}
