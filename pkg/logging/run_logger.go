package logging

import (
	"sort"
	"time"
)

// RunLogger carries the fields of one pipeline run (run id, stage, ...) and
// prefixes every entry with them.
type RunLogger struct {
	base   *Logger
	fields map[string]interface{}
}

// NewRunLogger creates a run logger on top of base. A nil base falls back to
// the process logger.
func NewRunLogger(base *Logger) *RunLogger {
	if base == nil {
		base = GetLogger()
	}
	return &RunLogger{base: base, fields: make(map[string]interface{})}
}

// WithField returns a copy of the logger with one more field.
func (rl *RunLogger) WithField(key string, value interface{}) *RunLogger {
	next := &RunLogger{base: rl.base, fields: rl.copyFields()}
	next.fields[key] = value
	return next
}

// WithRunID tags every entry with the run id.
func (rl *RunLogger) WithRunID(runID string) *RunLogger {
	return rl.WithField("run_id", runID)
}

// WithStage tags every entry with the pipeline stage.
func (rl *RunLogger) WithStage(stage string) *RunLogger {
	return rl.WithField("stage", stage)
}

// Base returns the wrapped logger.
func (rl *RunLogger) Base() *Logger {
	return rl.base
}

// TimeOperation runs fn and logs its duration and outcome.
func (rl *RunLogger) TimeOperation(operation string, fn func() error) (time.Duration, error) {
	start := time.Now()
	rl.Debug("starting operation", "operation", operation)

	err := fn()
	duration := time.Since(start)

	if err != nil {
		rl.Error("operation failed",
			"operation", operation,
			"duration", duration,
			"error", err)
	} else {
		rl.Info("operation completed",
			"operation", operation,
			"duration", duration)
	}

	return duration, err
}

// LogCommandExecution logs the outcome of a subprocess.
func (rl *RunLogger) LogCommandExecution(command string, exitCode int, duration time.Duration, err error) {
	l := rl.WithField("command", command).
		WithField("exit_code", exitCode).
		WithField("exec_duration", duration)

	switch {
	case err != nil:
		l.Error("command execution failed", "error", err)
	case exitCode != 0:
		l.Warn("command execution completed with non-zero exit code")
	default:
		l.Debug("command execution completed successfully")
	}
}

func (rl *RunLogger) Debug(msg string, args ...interface{}) {
	rl.base.Debug(msg, rl.merge(args)...)
}

func (rl *RunLogger) Info(msg string, args ...interface{}) {
	rl.base.Info(msg, rl.merge(args)...)
}

func (rl *RunLogger) Warn(msg string, args ...interface{}) {
	rl.base.Warn(msg, rl.merge(args)...)
}

func (rl *RunLogger) Error(msg string, args ...interface{}) {
	rl.base.Error(msg, rl.merge(args)...)
}

// merge puts the logger fields first, in key order, so entries read the same
// from run to run.
func (rl *RunLogger) merge(args []interface{}) []interface{} {
	keys := make([]string, 0, len(rl.fields))
	for k := range rl.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	all := make([]interface{}, 0, len(rl.fields)*2+len(args))
	for _, k := range keys {
		all = append(all, k, rl.fields[k])
	}
	return append(all, args...)
}

func (rl *RunLogger) copyFields() map[string]interface{} {
	fields := make(map[string]interface{}, len(rl.fields))
	for k, v := range rl.fields {
		fields[k] = v
	}
	return fields
}
