package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs a completed platform request at a level derived from its status
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration":    duration,
	}

	switch {
	case statusCode >= 500:
		l.WarnWithFields("server error response", fields)
	case statusCode >= 400:
		l.DebugWithFields("client error response", fields)
	default:
		l.DebugWithFields("request completed", fields)
	}
}

// LogTransfer logs the outcome of a single file retrieval
func LogTransfer(l Logger, url, path, outcome string, bytes int64, err error) {
	entry := l.WithFields(map[string]interface{}{
		"url":     url,
		"path":    path,
		"outcome": outcome,
		"bytes":   bytes,
	})

	if err != nil {
		entry.WithError(err).Error("transfer failed")
		return
	}
	entry.Info("transfer finished")
}

// LogRetry logs a transport retry
func LogRetry(l Logger, url string, attempt int, delay time.Duration, err error) {
	l.WithError(err).WarnWithFields("retrying request", map[string]interface{}{
		"url":      url,
		"attempt":  attempt,
		"delay_ms": delay.Milliseconds(),
	})
}

// LogPostState logs a reconciliation state change for a post
func LogPostState(l Logger, postID int64, state string) {
	l.InfoWithFields("post state", map[string]interface{}{
		"post_id": postID,
		"state":   state,
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, settings map[string]interface{}) {
	l := GetLogger().WithField("component", component)
	if len(settings) > 0 {
		l = l.WithFields(settings)
	}
	l.Info("component started")
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
