// Copyright 2025 walteh LLC
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

package log

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/walteh/deployrc/pkg/status"
)

// 📦 TargetRun describes a deploy run to one target for logging
type TargetRun struct {
	Name  string // target display name
	Type  string // target type
	Files int    // number of files of the run
}

// 🎯 Logger is the user-facing notifier: colored console lines mirrored to zerolog
type Logger struct {
	zlog    zerolog.Logger
	console io.Writer
	mu      sync.Mutex
	files   []status.FileInfo
}

// 🏭 New creates a new logger
func New(console io.Writer, level zerolog.Level) *Logger {
	zlog := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger().Level(level)
	return NewWithZerolog(console, zlog)
}

// NewWithZerolog creates a logger that mirrors to an existing zerolog logger
func NewWithZerolog(console io.Writer, zlog zerolog.Logger) *Logger {
	return &Logger{
		zlog:    zlog,
		console: console,
	}
}

// Discard returns a logger that writes nowhere
func Discard() *Logger {
	return NewWithZerolog(io.Discard, zerolog.Nop())
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context, or a discarding logger
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		return Discard()
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 StartTarget prints the header of a run to one target
func (l *Logger) StartTarget(ctx context.Context, run TargetRun) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.files = nil

	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(run.Name),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprint(run.Type))

	l.zlog.Info().
		Str("target", run.Name).
		Str("type", run.Type).
		Int("files", run.Files).
		Msg("starting deploy")
}

// 📝 LogFile prints the outcome of one file
func (l *Logger) LogFile(ctx context.Context, info status.FileInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.files = append(l.files, info)

	fmt.Fprintln(l.console, status.FormatFileLine(info))

	ev := l.zlog.Info()
	if info.Error != nil {
		ev = l.zlog.Error().Err(info.Error)
	}
	ev.Str("file", info.File).
		Str("remote", info.Remote).
		Str("target", info.Target).
		Str("status", info.Status.String()).
		Msg("file deployed")
}

// 📝 EndTarget logs the summary of the files logged since StartTarget
func (l *Logger) EndTarget(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	failed := 0
	for _, f := range l.files {
		if f.Status == status.StatusFailed {
			failed++
		}
	}

	l.zlog.Info().
		Int("files", len(l.files)).
		Int("failed", failed).
		Msg("deploy complete")

	l.files = nil
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("deployrc")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}
