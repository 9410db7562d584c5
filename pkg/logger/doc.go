// Package logger provides the structured logging interface used across fantiadl.
//
// It wraps zerolog. Console output is colourised and written to stderr, a
// log file (when configured) receives the same records. Human readable
// progress lines are not logged here; they go through package ui.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("component", "archiver")
//	log.InfoWithFields("post resolved", map[string]interface{}{
//	    "post_id": 12345,
//	    "items":   3,
//	})
//
// Tests use NewTestLogger to assert on emitted messages, or NewNopLogger to
// silence output entirely.
package logger
