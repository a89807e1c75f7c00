package logger

// NullLogger discards everything. Components fall back to it when no logger is wired.
type NullLogger struct{}

var _ Logger = (*NullLogger)(nil)

func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

func (l *NullLogger) Info(string, map[string]interface{})  {}
func (l *NullLogger) Warn(string, map[string]interface{})  {}
func (l *NullLogger) Error(error, map[string]interface{})  {}
func (l *NullLogger) Fatal(error, map[string]interface{})  {}
func (l *NullLogger) Debug(string, map[string]interface{}) {}
func (l *NullLogger) SetLevel(Level)                       {}
func (l *NullLogger) With(Fields) Logger                   { return l }
