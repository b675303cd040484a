/*
 * MIT License
 *
 * Copyright (c) 2024 gaspi contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package logger is the structured-logging backend shared by every gaspi
// component: the HTTP engine, the worker supervisor and the arbiter all log
// through the same Logger so a single level/format/output triplet governs
// the whole process tree.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Format selects the on-the-wire rendering of log records.
type Format uint8

const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat defaults to FormatText for anything other than "json".
func ParseFormat(s string) Format {
	if s == "json" {
		return FormatJSON
	}
	return FormatText
}

// Logger is the interface every gaspi package logs through. It is
// intentionally narrow: level-gated convenience methods for the common
// case, and Entry for anything that needs fields or accumulated errors.
type Logger interface {
	SetLevel(lvl Level)
	GetLevel() Level
	SetOutput(w io.Writer)
	SetFormat(f Format)

	Entry(lvl Level, msg string, args ...interface{}) *Entry

	Debug(args ...interface{})
	Info(args ...interface{})
	Warning(args ...interface{})
	Error(args ...interface{})
	Fatal(args ...interface{})

	// Access logs a single completed request tagged channel=access. It is
	// emitted at InfoLevel, so it is dropped when the level is set below
	// info.
	Access(fields Fields, msg string)

	// WithFields returns a derived Logger whose entries always carry f
	// merged underneath any per-entry fields.
	WithFields(f Fields) Logger
}

type lgr struct {
	mu     sync.RWMutex
	base   *logrus.Logger
	fields Fields
}

// New builds a Logger writing to os.Stderr at InfoLevel in text format. The
// returned value is safe for concurrent use, matching logrus's own
// contract; ctx is accepted for parity with other gaspi constructors and to
// allow a future context-scoped correlation ID to be threaded in without
// changing the signature.
func New(_ context.Context) Logger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetLevel(InfoLevel.logrus())
	base.SetFormatter(textFormatter())
	return &lgr{base: base}
}

func (l *lgr) SetLevel(lvl Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.base.SetLevel(lvl.logrus())
}

func (l *lgr) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Level(l.base.GetLevel())
}

func (l *lgr) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.base.SetOutput(w)
}

// SetFormat switches between text and JSON rendering.
func (l *lgr) SetFormat(f Format) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if f == FormatJSON {
		l.base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timeFormat})
	} else {
		l.base.SetFormatter(textFormatter())
	}
}

func (l *lgr) Entry(lvl Level, msg string, args ...interface{}) *Entry {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return &Entry{l: l, level: lvl, message: msg, fields: l.fields}
}

func (l *lgr) Debug(args ...interface{})   { l.log(DebugLevel, fmt.Sprint(args...), l.fields, nil) }
func (l *lgr) Info(args ...interface{})    { l.log(InfoLevel, fmt.Sprint(args...), l.fields, nil) }
func (l *lgr) Warning(args ...interface{}) { l.log(WarnLevel, fmt.Sprint(args...), l.fields, nil) }
func (l *lgr) Error(args ...interface{})   { l.log(ErrorLevel, fmt.Sprint(args...), l.fields, nil) }
func (l *lgr) Fatal(args ...interface{})   { l.log(FatalLevel, fmt.Sprint(args...), l.fields, nil) }

func (l *lgr) Access(fields Fields, msg string) {
	l.log(InfoLevel, msg, l.fields.merge(fields).merge(Fields{"channel": "access"}), nil)
}

func (l *lgr) WithFields(f Fields) Logger {
	return &lgr{base: l.base, fields: l.fields.merge(f)}
}

func (l *lgr) log(lvl Level, msg string, fields Fields, errs []error) {
	l.mu.RLock()
	base := l.base
	l.mu.RUnlock()

	e := base.WithFields(fields.logrus())
	if len(errs) == 1 {
		e = e.WithError(errs[0])
	} else if len(errs) > 1 {
		strs := make([]string, len(errs))
		for i, err := range errs {
			strs[i] = err.Error()
		}
		e = e.WithField("errors", strs)
	}

	switch lvl {
	case PanicLevel:
		e.Panic(msg)
	case FatalLevel:
		e.Error(msg) // os.Exit on a worker would take the whole process down with it; log and let the caller decide.
	case ErrorLevel:
		e.Error(msg)
	case WarnLevel:
		e.Warn(msg)
	case DebugLevel:
		e.Debug(msg)
	default:
		e.Info(msg)
	}
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"
