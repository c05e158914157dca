package errors

import (
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// ErrDataI is diagnostic context attached to an *Error.
type ErrDataI interface {
	EncodeErrorData() []byte
	Error() string
	GetData(key string) interface{}
	SetData(key string, value interface{})
}

// ErrData holds the context a failing round knew about: FSM state, round id, bus.
type ErrData map[string]interface{}

// Error renders the entries sorted by key so log lines are stable.
func (e *ErrData) Error() string {
	if e == nil || len(*e) == 0 {
		return ""
	}

	keys := make([]string, 0, len(*e))
	for k := range *e {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var sb strings.Builder

	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, (*e)[k])
	}

	return sb.String()
}

func (e *ErrData) SetData(key string, value interface{}) {
	if e == nil {
		return
	}

	(*e)[key] = value
}

func (e *ErrData) GetData(key string) interface{} {
	if e == nil {
		return nil
	}

	return (*e)[key]
}

// EncodeErrorData returns the entries as a JSON object, or nothing if a value cannot be encoded.
func (e *ErrData) EncodeErrorData() []byte {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(e)
	if err != nil {
		return []byte{}
	}

	return data
}
