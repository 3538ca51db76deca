// Package logging wraps zap with the stack-tracing error conventions used
// throughout the daemon.
package logging

import (
	"fmt"

	"github.com/spf13/cast"
	"github.com/vuuvv/errors"
	"go.uber.org/zap"
)

var logger *zap.Logger = zap.NewNop()

// L returns the current process-wide logger.
func L() *zap.Logger {
	return logger
}

// SetLogger installs l as the process-wide logger and makes it the zap
// global logger too, so any third-party code that logs through
// zap.L()/zap.S() lands in the same sink.
func SetLogger(l *zap.Logger) {
	logger = l
	zap.ReplaceGlobals(l)
}

func toString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case error:
		return fmt.Sprintf("%+v", v)
	default:
		return cast.ToString(val)
	}
}

// CastToError normalizes a recover() value (or a bare error) into a
// wrapped *errors.Error carrying a stack trace, and renders the message
// that should accompany it at the current log level.
func CastToError(reason any) (msg string, err error) {
	var ok bool

	err, ok = reason.(error)
	if !ok {
		err = errors.NewAndSkip(toString(reason), 2)
	} else {
		err = errors.WithStackAndSkip(err, 2)
	}

	if zap.L().Level().Enabled(zap.DebugLevel) {
		msg = fmt.Sprintf("%+v", err)
	} else {
		msg = err.Error()
	}

	return msg, err
}

// Error logs reason (an error or a recover() value) at ERROR level.
func Error(reason any, fields ...zap.Field) {
	msg, err := CastToError(reason)
	logger.Error(msg, append(fields, zap.Error(err))...)
}

// Warn logs reason at WARN level.
func Warn(reason any, fields ...zap.Field) {
	msg, err := CastToError(reason)
	logger.Warn(msg, append(fields, zap.Error(err))...)
}

// Info logs a plain informational message.
func Info(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}

// Debug logs a plain debug message.
func Debug(msg string, fields ...zap.Field) {
	logger.Debug(msg, fields...)
}

// Action returns the structured fields attached to every request-scoped
// log line per spec.md §7: the action name and the instance id.
func Action(action, instanceID string) []zap.Field {
	return []zap.Field{
		zap.String("action", action),
		zap.String("instance_id", instanceID),
	}
}
