// Package logging provides line-oriented console logging for the registry,
// the agents and the pipeline. The pipeline trace is the record of a run;
// these logs are for watching it happen.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel parses a level name, case-insensitively. Unknown names yield INFO.
func ParseLevel(s string) Level {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := levelPriority[l]; ok {
		return l
	}
	return LevelInfo
}

// Logger writes LEVEL TIMESTAMP [component] message key=value lines.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	runID     string
}

// New creates a new Logger writing INFO and above to stderr.
func New() *Logger {
	return &Logger{
		output:   os.Stderr,
		minLevel: LevelInfo,
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{output: io.Discard, minLevel: LevelError}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		runID:     l.runID,
	}
}

// WithRunID returns a new logger that tags every line with run=<id>.
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		runID:     runID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields renders fields as key=value pairs in key order.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return " " + strings.Join(parts, " ")
}

func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}
	if l.runID != "" {
		fieldStr += " run=" + l.runID
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// --- Domain helpers ---

// Registered logs a successful registration of tags.
func (l *Logger) Registered(id string, tags []string) {
	l.Info("registered", map[string]interface{}{
		"id":   id,
		"tags": strings.Join(tags, ","),
	})
}

// RegistrationFailed logs a registration attempt that did not reach the registry.
func (l *Logger) RegistrationFailed(registryURL string, err error) {
	l.Warn("registration_failed", map[string]interface{}{
		"registry": registryURL,
		"error":    err.Error(),
	})
}

// ResolveMiss logs a tag that could not be resolved.
func (l *Logger) ResolveMiss(tag string, err error) {
	fields := map[string]interface{}{"tag": tag}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Warn("resolve_miss", fields)
}

// HopStart logs the start of a hop to the agent behind tag.
func (l *Logger) HopStart(tag, intent string, iteration int) {
	l.Debug("hop_start", map[string]interface{}{
		"tag":       tag,
		"intent":    intent,
		"iteration": iteration,
	})
}

// HopComplete logs the end of a hop.
func (l *Logger) HopComplete(tag string, duration time.Duration, status string, err error) {
	fields := map[string]interface{}{
		"tag":      tag,
		"duration": duration.String(),
		"status":   status,
	}
	if err != nil {
		fields["error"] = err.Error()
		l.Error("hop_failed", fields)
		return
	}
	l.Info("hop_complete", fields)
}

// PipelineComplete logs the terminal state of a run.
func (l *Logger) PipelineComplete(status, phase string, iterations, steps int, duration time.Duration) {
	l.Info("pipeline_complete", map[string]interface{}{
		"status":     status,
		"phase":      phase,
		"iterations": iterations,
		"steps":      steps,
		"duration":   duration.String(),
	})
}
