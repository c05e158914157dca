package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test_NewCustomError tests the creation of custom errors.
func Test_NewCustomError(t *testing.T) {
	err := New(ERR_NOT_FOUND, "resource not found")
	require.NotNil(t, err)
	require.Equal(t, ERR_NOT_FOUND, err.Code())
	require.Equal(t, "resource not found", err.Message())

	secondErr := New(ERR_INVALID_ARGUMENT, "[Builder][%s] failed to sign chunk", "wallet-1", err)
	thirdErr := New(ERR_SIGNING_CONSTRAINT, "[Builder][%s] chunk rejected", "wallet-1", secondErr)
	anotherErr := New(ERR_SIGNING_CONSTRAINT, "another signing error")
	fourthErr := New(ERR_SERVICE_ERROR, "older error", thirdErr)

	require.True(t, anotherErr.Is(thirdErr))
	require.True(t, fourthErr.Is(New(ERR_SIGNING_CONSTRAINT, "")))
	require.True(t, fourthErr.Is(ErrSigningConstraint))
	require.True(t, fourthErr.Is(err))

	require.False(t, anotherErr.Is(fourthErr))
	require.False(t, fourthErr.Is(ErrStaleState))
}

func Test_FmtErrorCustomError(t *testing.T) {
	err := New(ERR_NOT_FOUND, "resource not found")

	fmtError := fmt.Errorf("error: %w", err)
	require.True(t, errors.Is(fmtError, ErrNotFound))

	var tErr *Error
	require.True(t, errors.As(fmtError, &tErr))
	assert.Equal(t, ERR_NOT_FOUND, tErr.Code())
}

func Test_MessageFormatting(t *testing.T) {
	err := New(ERR_EXHAUSTED, "no bus above %d after %d attempts", 40, 8)
	assert.Equal(t, "no bus above 40 after 8 attempts", err.Message())
	assert.Nil(t, err.WrappedErr())

	wrapped := New(ERR_NETWORK, "rpc %s failed", "getAccountInfo", context.DeadlineExceeded)
	assert.Equal(t, "rpc getAccountInfo failed", wrapped.Message())
	assert.True(t, errors.Is(wrapped, context.DeadlineExceeded))
	assert.Contains(t, wrapped.Error(), "NETWORK")
}

func Test_InvalidCode(t *testing.T) {
	err := New(ERR(999), "whatever")
	assert.Equal(t, "invalid error code", err.Message())
	assert.Equal(t, "ERR_999", ERR(999).Enum())
}

func Test_ErrorData(t *testing.T) {
	err := New(ERR_SUBMISSION_REJECTED, "bundle rejected")
	err.SetData("bus", 3)
	err.SetData("phase", "submitting")

	assert.Equal(t, 3, err.GetData("bus"))
	assert.Equal(t, "submitting", err.GetData("phase"))
	assert.Contains(t, err.Error(), "phase")

	var nilErr *Error
	assert.Nil(t, nilErr.GetData("bus"))
	assert.Equal(t, "<nil>", nilErr.Error())
	assert.Equal(t, ERR_UNKNOWN, nilErr.Code())
}

func Test_Join(t *testing.T) {
	assert.Nil(t, Join(nil, nil))

	err := Join(NewNetworkError("a"), nil, NewStaleStateError("b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Message: a")
	assert.Contains(t, err.Error(), "Message: b")
}

func Test_CodeOf(t *testing.T) {
	assert.Equal(t, ERR_UNKNOWN, CodeOf(errors.New("plain")))
	assert.Equal(t, ERR_STALE_STATE, CodeOf(fmt.Errorf("wrapped: %w", NewStaleStateError("x"))))
}

func Test_ErrDataEncoding(t *testing.T) {
	err := New(ERR_STALE_STATE, "proof consumed")
	err.SetData("state", "SUBMITTING")
	err.SetData("bus", 5)

	assert.Equal(t, " bus=5 state=SUBMITTING", err.Data().Error())
	assert.JSONEq(t, `{"bus":5,"state":"SUBMITTING"}`, string(err.Data().EncodeErrorData()))
	assert.True(t, strings.HasSuffix(err.Error(), "Data: bus=5 state=SUBMITTING"))
}
