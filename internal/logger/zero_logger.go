package logger

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var zeroLevels = map[Level]zerolog.Level{
	LevelDebug: zerolog.DebugLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelError: zerolog.ErrorLevel,
	LevelFatal: zerolog.FatalLevel,
	LevelOff:   zerolog.Disabled,
}

// ZeroLogger writes JSON lines through zerolog. Children created with With
// share the parent's level, so SetLevel on the root reaches every component.
type ZeroLogger struct {
	zl    zerolog.Logger
	level *atomic.Int32
	exit  func(code int)
}

var _ Logger = (*ZeroLogger)(nil)

// NewZeroLogger returns a logger writing to writer with defaultFields on every line.
func NewZeroLogger(writer io.Writer, level Level, defaultFields Fields) *ZeroLogger {
	ctx := zerolog.New(writer).With().Timestamp()
	if len(defaultFields) > 0 {
		ctx = ctx.Fields(map[string]interface{}(defaultFields))
	}
	l := &ZeroLogger{
		zl:    ctx.Logger(),
		level: new(atomic.Int32),
		exit:  os.Exit,
	}
	l.SetLevel(level)
	return l
}

func (l *ZeroLogger) event(level Level) *zerolog.Event {
	if level < Level(l.level.Load()) {
		return nil
	}
	return l.zl.WithLevel(zeroLevels[level])
}

func (l *ZeroLogger) Info(message string, properties map[string]interface{}) {
	l.event(LevelInfo).Fields(properties).Msg(message)
}

func (l *ZeroLogger) Warn(message string, properties map[string]interface{}) {
	l.event(LevelWarn).Fields(properties).Msg(message)
}

func (l *ZeroLogger) Debug(message string, properties map[string]interface{}) {
	l.event(LevelDebug).Fields(properties).Msg(message)
}

func (l *ZeroLogger) Error(err error, properties map[string]interface{}) {
	l.event(LevelError).Fields(properties).Err(err).Msg(errMessage(err))
}

// Fatal logs regardless of level and exits the process.
func (l *ZeroLogger) Fatal(err error, properties map[string]interface{}) {
	l.zl.WithLevel(zerolog.FatalLevel).Fields(properties).Err(err).Msg(errMessage(err))
	l.exit(1)
}

func (l *ZeroLogger) SetLevel(level Level) {
	if _, ok := zeroLevels[level]; !ok {
		level = LevelInfo
	}
	l.level.Store(int32(level))
}

func (l *ZeroLogger) With(fields Fields) Logger {
	return &ZeroLogger{
		zl:    l.zl.With().Fields(map[string]interface{}(fields)).Logger(),
		level: l.level,
		exit:  l.exit,
	}
}

func errMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
