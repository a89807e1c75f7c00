package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/joefazee/categorias/internal/logger"
)

type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Info(message string, properties map[string]interface{}) {
	m.Called(message, properties)
}

func (m *MockLogger) Warn(message string, properties map[string]interface{}) {
	m.Called(message, properties)
}

func (m *MockLogger) Error(err error, properties map[string]interface{}) {
	m.Called(err, properties)
}

func (m *MockLogger) Fatal(err error, properties map[string]interface{}) {
	m.Called(err, properties)
}

func (m *MockLogger) Debug(message string, properties map[string]interface{}) {
	m.Called(message, properties)
}

func (m *MockLogger) SetLevel(level logger.Level) {
	m.Called(level)
}

// With returns the mock itself so expectations set on it cover child loggers.
func (m *MockLogger) With(_ logger.Fields) logger.Logger {
	return m
}
