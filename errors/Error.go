package errors

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

type Error struct {
	code       ERR
	message    string
	wrappedErr error
	data       ErrDataI
}

type Interface interface {
	Error() string
	Is(target error) bool
	As(target interface{}) bool
	Unwrap() error

	Code() ERR
	Message() string
	WrappedErr() error
	Data() ErrDataI
}

// Error renders the code, the message, the wrapped error and any data, in that order.
func (e *Error) Error() string {
	// predefined errors are compared by code and may be nil
	if e == nil {
		return "<nil>"
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "Error: %s (error code: %d), Message: %v", e.code.Enum(), e.code, e.message)

	if e.wrappedErr != nil {
		fmt.Fprintf(&sb, ", Wrapped err: %v", e.wrappedErr)
	}

	if e.data != nil {
		if dataMsg := e.data.Error(); dataMsg != "" {
			sb.WriteString(", Data:")
			sb.WriteString(dataMsg)
		}
	}

	return sb.String()
}

// Is reports whether error codes match anywhere in the chain.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}

	targetError, ok := target.(*Error)
	if !ok {
		if e.wrappedErr != nil && errors.Is(e.wrappedErr, target) {
			return true
		}

		return strings.Contains(e.Error(), target.Error())
	}

	if e.code == targetError.code {
		return true
	}

	if e.wrappedErr == nil {
		return false
	}

	if ue, ok := e.wrappedErr.(*Error); ok {
		return ue.Is(target)
	}

	return false
}

func (e *Error) As(target interface{}) bool {
	if e == nil {
		return false
	}

	if targetErr, ok := target.(**Error); ok {
		*targetErr = e
		return true
	}

	// check if Data matches the target type
	if e.data != nil {
		if data, ok := e.data.(error); ok && errors.As(data, target) {
			return true
		}
	}

	if e.wrappedErr != nil {
		// use reflect to see if the value is nil. If it is, return false
		v := reflect.ValueOf(e.wrappedErr)
		if v.Kind() == reflect.Ptr && v.IsNil() {
			return false
		}

		return errors.As(e.wrappedErr, target)
	}

	return false
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.wrappedErr
}

func (e *Error) Code() ERR {
	if e == nil {
		return ERR_UNKNOWN
	}

	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}

	return e.message
}

func (e *Error) WrappedErr() error {
	if e == nil {
		return nil
	}

	return e.wrappedErr
}

func (e *Error) Data() ErrDataI {
	if e == nil {
		return nil
	}

	return e.data
}

// SetData attaches diagnostic context (wallet, pool id, round phase) to the error.
func (e *Error) SetData(key string, value interface{}) {
	if e == nil {
		return
	}

	if e.data == nil {
		e.data = &ErrData{}
	}

	e.data.SetData(key, value)
}

func (e *Error) GetData(key string) interface{} {
	if e == nil || e.data == nil {
		return nil
	}

	return e.data.GetData(key)
}

// New creates a coded error. If the last param is an error it becomes the wrapped error,
// the remaining params are used to format the message.
func New(code ERR, message string, params ...interface{}) *Error {
	var wErr error

	if len(params) > 0 {
		if err, ok := params[len(params)-1].(error); ok {
			wErr = err
			params = params[:len(params)-1]
		}
	}

	if len(params) > 0 {
		message = fmt.Sprintf(message, params...)
	}

	if _, ok := ERR_name[int32(code)]; !ok {
		return &Error{
			code:       code,
			message:    "invalid error code",
			wrappedErr: wErr,
		}
	}

	return &Error{
		code:       code,
		message:    message,
		wrappedErr: wErr,
	}
}

func Join(errs ...error) error {
	var messages []string

	for _, err := range errs {
		if err != nil {
			messages = append(messages, err.Error())
		}
	}

	if len(messages) == 0 {
		return nil
	}

	return errors.New(strings.Join(messages, ", "))
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// CodeOf returns the code of the outermost *Error in the chain, or ERR_UNKNOWN.
func CodeOf(err error) ERR {
	var tErr *Error
	if errors.As(err, &tErr) {
		return tErr.Code()
	}

	return ERR_UNKNOWN
}
