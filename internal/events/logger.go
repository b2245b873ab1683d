package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/charmbracelet/log"
)

var _ watermill.LoggerAdapter = (*LogAdapter)(nil)

// LogAdapter routes watermill's logs into charmbracelet/log.
type LogAdapter struct {
	logger *log.Logger
}

// NewLogAdapter wraps logger, or the default logger when nil.
func NewLogAdapter(logger *log.Logger) *LogAdapter {
	if logger == nil {
		logger = log.Default()
	}
	return &LogAdapter{logger: logger}
}

func (a *LogAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.Error(msg, append(keyvals(fields), "error", err)...)
}

func (a *LogAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Info(msg, keyvals(fields)...)
}

func (a *LogAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, keyvals(fields)...)
}

// Trace is mapped to debug; charmbracelet/log has no trace level.
func (a *LogAdapter) Trace(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, keyvals(fields)...)
}

func (a *LogAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &LogAdapter{logger: a.logger.With(keyvals(fields)...)}
}

func keyvals(fields watermill.LogFields) []any {
	kv := make([]any, 0, 2*len(fields))
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return kv
}
