// Package mocklogger provides a ulogger.Logger that records calls so tests can assert on
// what a component logged.
package mocklogger

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/bundleminer/bundleminer/ulogger"
)

type MockLogger struct {
	mu       sync.Mutex
	calls    map[string]int
	messages map[string][]string
}

func NewTestLogger() *MockLogger {
	return &MockLogger{
		calls:    make(map[string]int),
		messages: make(map[string][]string),
	}
}

func (l *MockLogger) LogLevel() int {
	return 0
}

func (l *MockLogger) SetLogLevel(_ string) {}

// New returns a fresh recorder; calls made on it are not visible on the parent.
func (l *MockLogger) New(_ string, _ ...ulogger.Option) ulogger.Logger {
	return NewTestLogger()
}

// Duplicate returns the same recorder so that calls are shared.
func (l *MockLogger) Duplicate(_ ...ulogger.Option) ulogger.Logger {
	return l
}

func (l *MockLogger) Debugf(format string, args ...interface{}) {
	l.record("Debugf", format, args...)
}

func (l *MockLogger) Infof(format string, args ...interface{}) {
	l.record("Infof", format, args...)
}

func (l *MockLogger) Warnf(format string, args ...interface{}) {
	l.record("Warnf", format, args...)
}

func (l *MockLogger) Errorf(format string, args ...interface{}) {
	l.record("Errorf", format, args...)
}

func (l *MockLogger) Fatalf(format string, args ...interface{}) {
	l.record("Fatalf", format, args...)
}

func (l *MockLogger) record(method, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls[method]++
	l.messages[method] = append(l.messages[method], fmt.Sprintf(format, args...))
}

// Calls returns the number of times method was called.
func (l *MockLogger) Calls(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.calls[method]
}

// Contains reports whether any message logged through method contains substr.
func (l *MockLogger) Contains(method, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, msg := range l.messages[method] {
		if strings.Contains(msg, substr) {
			return true
		}
	}

	return false
}

func (l *MockLogger) AssertNumberOfCalls(t *testing.T, methodName string, expectedCalls int) {
	t.Helper()

	if actualCalls := l.Calls(methodName); actualCalls != expectedCalls {
		t.Errorf("Expected %v calls to %s, got %v", expectedCalls, methodName, actualCalls)
	}
}

// Reset clears all recorded calls and messages.
func (l *MockLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls = make(map[string]int)
	l.messages = make(map[string][]string)
}
