// Package logger provides structured logging capabilities.
//
// New builds a zap logger in production (JSON, ISO8601 timestamps) or
// development (console, colored levels) mode. NewFromConfig does the same
// from the logging section and tags every entry with the session id.
// LineWriter turns the raw output of child processes, such as the python
// kernel's own stdout and stderr, into one log entry per line.
//
// Usage:
//
//	log, err := logger.NewFromConfig(cfg)
//	if err != nil {
//	    return err
//	}
//	stderr := logger.NewLineWriter(log, zapcore.DebugLevel, "kernel_stderr")
//	cmd.Stderr = stderr
package logger
