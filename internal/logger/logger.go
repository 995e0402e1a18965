// Copyright 2026 The Blockfs Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the leveled, structured logging used by every
// component of the module: the buffer cache, the inode layer, the
// directory layer and the mount facade all log through here rather
// than through the bare "log" package, so severity and format are
// configured once, in one place.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity names accepted by SetLevel, from most to least verbose.
const (
	TRACE   = "TRACE"
	DEBUG   = "DEBUG"
	INFO    = "INFO"
	WARNING = "WARNING"
	ERROR   = "ERROR"
	OFF     = "OFF"
)

// Custom slog levels. TRACE sits below slog's built-in Debug; OFF sits
// above Error so that it suppresses everything.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(12)
)

// RotateConfig controls on-disk log rotation when logging to a file.
type RotateConfig struct {
	MaxSizeMB       int
	BackupFileCount int
	Compress        bool
}

// DefaultRotateConfig mirrors common lumberjack defaults: rotate at
// 512MB, keep 10 backups, compress rotated files.
func DefaultRotateConfig() RotateConfig {
	return RotateConfig{MaxSizeMB: 512, BackupFileCount: 10, Compress: true}
}

// Config selects where and how logs are emitted.
type Config struct {
	// FilePath, if non-empty, directs logs to a rotated file instead of
	// stderr.
	FilePath string
	// Format is "json" or "text"; "text" is the default when empty.
	Format string
	// Severity is one of the level constants above; INFO is the
	// default when empty.
	Severity string
	Rotate   RotateConfig
}

type factory struct {
	mu       sync.Mutex
	file     io.WriteCloser
	format   string
	levelVar *slog.LevelVar
}

var (
	defaultFactory = &factory{format: TRACEFormatDefault, levelVar: programLevel(INFO)}
	defaultLogger  = slog.New(defaultFactory.handler(os.Stderr))
)

// TRACEFormatDefault is the default rendering format.
const TRACEFormatDefault = "text"

func programLevel(sev string) *slog.LevelVar {
	v := new(slog.LevelVar)
	v.Set(severityToLevel(sev))
	return v
}

func severityToLevel(sev string) slog.Level {
	switch sev {
	case TRACE:
		return LevelTrace
	case DEBUG:
		return LevelDebug
	case INFO:
		return LevelInfo
	case WARNING:
		return LevelWarn
	case ERROR:
		return LevelError
	case OFF:
		return LevelOff
	default:
		return LevelInfo
	}
}

func levelToSeverity(l slog.Level) string {
	switch {
	case l <= LevelTrace:
		return TRACE
	case l <= LevelDebug:
		return DEBUG
	case l <= LevelInfo:
		return INFO
	case l <= LevelWarn:
		return WARNING
	default:
		return ERROR
	}
}

// handler builds the json-or-text slog.Handler for the given writer,
// stamping the custom severity names in place of slog's defaults.
func (f *factory) handler(w io.Writer) slog.Handler {
	replace := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.LevelKey {
			lvl := a.Value.Any().(slog.Level)
			a.Key = "severity"
			a.Value = slog.StringValue(levelToSeverity(lvl))
		}
		if a.Key == slog.TimeKey {
			if f.format == "json" {
				t := a.Value.Time()
				a.Value = slog.AnyValue(jsonTimestamp{Seconds: t.Unix(), Nanos: t.Nanosecond()})
			}
		}
		return a
	}

	opts := &slog.HandlerOptions{Level: f.levelVar, ReplaceAttr: replace}
	if f.format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

type jsonTimestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int   `json:"nanos"`
}

func (t jsonTimestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Seconds int64 `json:"seconds"`
		Nanos   int   `json:"nanos"`
	}{t.Seconds, t.Nanos})
}

// Init configures the package-level logger per cfg. It is safe to call
// more than once (e.g. after re-reading configuration).
func Init(cfg Config) error {
	defaultFactory.mu.Lock()
	defer defaultFactory.mu.Unlock()

	if cfg.Format != "" {
		defaultFactory.format = cfg.Format
	}
	defaultFactory.levelVar.Set(severityToLevel(orDefault(cfg.Severity, INFO)))

	var w io.Writer = os.Stderr
	if cfg.FilePath != "" {
		rotate := cfg.Rotate
		if rotate.MaxSizeMB == 0 {
			rotate = DefaultRotateConfig()
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    rotate.MaxSizeMB,
			MaxBackups: rotate.BackupFileCount,
			Compress:   rotate.Compress,
		}
		defaultFactory.file = lj
		w = lj
	}

	defaultLogger = slog.New(defaultFactory.handler(w))
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// SetFormat switches between "json" and "text" rendering at runtime.
func SetFormat(format string) {
	defaultFactory.mu.Lock()
	defer defaultFactory.mu.Unlock()
	defaultFactory.format = format

	var w io.Writer = os.Stderr
	if defaultFactory.file != nil {
		w = defaultFactory.file
	}
	defaultLogger = slog.New(defaultFactory.handler(w))
}

// SetLevel changes the minimum severity logged at runtime.
func SetLevel(severity string) {
	defaultFactory.levelVar.Set(severityToLevel(severity))
}

func Tracef(format string, v ...any) {
	defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, v...))
}
func Debugf(format string, v ...any) { defaultLogger.Debug(fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { defaultLogger.Info(fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { defaultLogger.Warn(fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { defaultLogger.Error(fmt.Sprintf(format, v...)) }

// Fatalf logs at ERROR severity and then panics. This is the module's
// single intentional panic path: spec.md reserves it for the buffer
// cache's out-of-memory-during-eviction condition, which invariant 3
// guarantees cannot occur in practice.
func Fatalf(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	defaultLogger.Error(msg)
	panic(msg)
}

// Named returns a logger that prefixes every message with component,
// e.g. logger.Named("cache").Debugf("evicted sector %d", s).
func Named(component string) *ComponentLogger {
	return &ComponentLogger{component: component}
}

// ComponentLogger is a thin per-component view over the package-level
// logger, named the way a "cache: " or "inode: " prefix would be in a
// plain log.Logger but carrying structured severities.
type ComponentLogger struct {
	component string
}

func (c *ComponentLogger) Tracef(format string, v ...any) {
	Tracef("%s: %s", c.component, fmt.Sprintf(format, v...))
}
func (c *ComponentLogger) Debugf(format string, v ...any) {
	Debugf("%s: %s", c.component, fmt.Sprintf(format, v...))
}
func (c *ComponentLogger) Infof(format string, v ...any) {
	Infof("%s: %s", c.component, fmt.Sprintf(format, v...))
}
func (c *ComponentLogger) Warnf(format string, v ...any) {
	Warnf("%s: %s", c.component, fmt.Sprintf(format, v...))
}
func (c *ComponentLogger) Errorf(format string, v ...any) {
	Errorf("%s: %s", c.component, fmt.Sprintf(format, v...))
}
func (c *ComponentLogger) Fatalf(format string, v ...any) {
	Fatalf("%s: %s", c.component, fmt.Sprintf(format, v...))
}
