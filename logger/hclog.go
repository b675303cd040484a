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

package logger

import (
	"io"
	"log"

	"github.com/hashicorp/go-hclog"
)

// HCLog adapts a Logger to hclog.Logger so third-party libraries that take
// an hclog dependency (gRPC clients, go-plugin, etc.) log through the same
// sink as the rest of gaspi instead of opening a second, unformatted one.
type HCLog struct {
	l    Logger
	name string
}

// NewHCLog wraps l as an hclog.Logger named name.
func NewHCLog(l Logger, name string) hclog.Logger {
	return &HCLog{l: l, name: name}
}

func (h *HCLog) Log(level hclog.Level, msg string, args ...interface{}) {
	h.Entry(fromHCLevel(level), msg, args...)
}

func (h *HCLog) Entry(lvl Level, msg string, args ...interface{}) {
	e := h.l.Entry(lvl, msg)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		e.Field(key, args[i+1])
	}
	e.Log()
}

func (h *HCLog) Trace(msg string, args ...interface{}) { h.Entry(DebugLevel, msg, args...) }
func (h *HCLog) Debug(msg string, args ...interface{}) { h.Entry(DebugLevel, msg, args...) }
func (h *HCLog) Info(msg string, args ...interface{})  { h.Entry(InfoLevel, msg, args...) }
func (h *HCLog) Warn(msg string, args ...interface{})  { h.Entry(WarnLevel, msg, args...) }
func (h *HCLog) Error(msg string, args ...interface{}) { h.Entry(ErrorLevel, msg, args...) }

func (h *HCLog) IsTrace() bool { return h.l.GetLevel() >= DebugLevel }
func (h *HCLog) IsDebug() bool { return h.l.GetLevel() >= DebugLevel }
func (h *HCLog) IsInfo() bool  { return h.l.GetLevel() >= InfoLevel }
func (h *HCLog) IsWarn() bool  { return h.l.GetLevel() >= WarnLevel }
func (h *HCLog) IsError() bool { return h.l.GetLevel() >= ErrorLevel }

func (h *HCLog) ImpliedArgs() []interface{} { return nil }

func (h *HCLog) With(args ...interface{}) hclog.Logger {
	f := Fields{}
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		f[key] = args[i+1]
	}
	return &HCLog{l: h.l.WithFields(f), name: h.name}
}

func (h *HCLog) Name() string { return h.name }

func (h *HCLog) Named(name string) hclog.Logger {
	if h.name != "" {
		name = h.name + "." + name
	}
	return &HCLog{l: h.l, name: name}
}

func (h *HCLog) ResetNamed(name string) hclog.Logger {
	return &HCLog{l: h.l, name: name}
}

func (h *HCLog) SetLevel(level hclog.Level) {
	h.l.SetLevel(fromHCLevel(level))
}

func (h *HCLog) GetLevel() hclog.Level {
	return toHCLevel(h.l.GetLevel())
}

func (h *HCLog) StandardLogger(opts *hclog.StandardLoggerOptions) *log.Logger {
	return log.New(h.StandardWriter(opts), "", 0)
}

func (h *HCLog) StandardWriter(_ *hclog.StandardLoggerOptions) io.Writer {
	return hclogWriter{h: h}
}

type hclogWriter struct{ h *HCLog }

func (w hclogWriter) Write(p []byte) (int, error) {
	w.h.Info(string(p))
	return len(p), nil
}

func fromHCLevel(level hclog.Level) Level {
	switch level {
	case hclog.Trace, hclog.Debug:
		return DebugLevel
	case hclog.Warn:
		return WarnLevel
	case hclog.Error:
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func toHCLevel(lvl Level) hclog.Level {
	switch lvl {
	case DebugLevel:
		return hclog.Debug
	case WarnLevel:
		return hclog.Warn
	case ErrorLevel, FatalLevel, PanicLevel:
		return hclog.Error
	default:
		return hclog.Info
	}
}
