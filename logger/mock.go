package logger

import (
	"github.com/stretchr/testify/mock"
)

// MockLogger is a testify mock implementing Logger.
type MockLogger struct {
	mock.Mock
}

var _ Logger = (*MockLogger)(nil)

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

// AllowAny accepts any number of calls to the given log methods, e.g. "Debug", "Info".
// Expectations registered with On for specific messages are still checked.
func (m *MockLogger) AllowAny(methods ...string) *MockLogger {
	for _, method := range methods {
		m.On(method, mock.Anything, mock.Anything).Maybe()
	}

	return m
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Info(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Error(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Fatal(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) SetLevel(level Level) {
	m.Called(level)
}

func (m *MockLogger) Level() Level {
	args := m.Called()
	return args.Get(0).(Level)
}

// With returns the mocked child logger. When no expectation returns a Logger the mock itself is returned.
func (m *MockLogger) With(keyValues ...any) Logger {
	args := m.Called(keyValues...)
	if len(args) > 0 {
		if l, ok := args.Get(0).(Logger); ok {
			return l
		}
	}

	return m
}
