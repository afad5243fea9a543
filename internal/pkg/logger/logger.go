package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// Logger provides structured JSON logging with optional PII redaction.
// Entries go to stderr and, when a log directory is configured, to a
// daily file named <prefix>_YYYY-MM-DD.log that the logs CLI reads back.
type Logger struct {
	level     Level
	mu        sync.Mutex
	redactPII bool

	dir    string
	prefix string
	file   *os.File
	day    string
}

var defaultLogger = &Logger{level: INFO, redactPII: true}

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) { defaultLogger.level = l }

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) { defaultLogger.redactPII = r }

// SetFileOutput directs the default logger to also append entries to
// daily files under dir. Pass an empty dir to disable file output.
func SetFileOutput(dir, prefix string) error {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	if defaultLogger.file != nil {
		defaultLogger.file.Close()
		defaultLogger.file = nil
	}
	defaultLogger.dir = dir
	defaultLogger.prefix = prefix
	defaultLogger.day = ""
	if dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	if level < l.level {
		return
	}

	now := time.Now().UTC()
	entry := map[string]interface{}{
		"time":  now.Format(time.RFC3339),
		"level": levelNames[level],
		"msg":   msg,
	}

	// Parse key-value pairs from fields
	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		val := fmt.Sprintf("%v", fields[i+1])
		if l.redactPII {
			val = redactPIIValue(key, val)
		}
		entry[key] = val
	}

	data, _ := json.Marshal(entry)
	// File lines carry a plain-text timestamp prefix so the logs CLI can
	// apply time-window filters without parsing JSON.
	line := fmt.Sprintf("%s %s %s", now.Format("2006-01-02 15:04:05"), levelNames[level], string(data))

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(os.Stderr, string(data))
	if w := l.fileForLocked(now); w != nil {
		fmt.Fprintln(w, line)
	}
}

// fileForLocked returns the daily file handle, rolling over at midnight
// UTC. Caller must hold l.mu.
func (l *Logger) fileForLocked(now time.Time) io.Writer {
	if l.dir == "" {
		return nil
	}
	day := now.Format("2006-01-02")
	if l.file != nil && day == l.day {
		return l.file
	}
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	name := filepath.Join(l.dir, fmt.Sprintf("%s_%s.log", l.prefix, day))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: open %s: %v\n", name, err)
		return nil
	}
	l.file = f
	l.day = day
	return f
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	// Contact email fields get masked outright
	if strings.Contains(key, "email") || strings.Contains(key, "contact") {
		return RedactEmail(val)
	}
	// Redact any embedded emails in generic fields
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
