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

// Package accesslog emits one structured log entry per completed request,
// the way the original server's access_logger did. It is a thin wrapper
// over logger.Logger.Access so it shares the process's configured output
// and format without inventing a second logging path.
package accesslog

import (
	"time"

	"github.com/sabouaram/gaspi/gateway"
	"github.com/sabouaram/gaspi/logger"
)

// Logger records one line per completed request when enabled.
type Logger struct {
	base logger.Logger
}

// New wraps base. Pass a nil *Logger (not this constructor's result, the
// pointer itself) at the call site to disable access logging entirely;
// Record on a nil receiver is a no-op.
func New(base logger.Logger) *Logger {
	return &Logger{base: base}
}

// Record logs one completed request. status is 0 when the application
// never sent http.response.start. connID
// identifies the connection the request arrived on, so pipelined
// requests and their connection's lifecycle log lines can be correlated.
func (l *Logger) Record(connID string, env *gateway.Env, status int, bytesOut int64, start time.Time) {
	if l == nil {
		return
	}
	fields := logger.Fields{
		"conn_id":  connID,
		"method":   env.Method,
		"path":     string(env.Path),
		"status":   status,
		"bytes":    bytesOut,
		"duration": time.Since(start).String(),
		"client":   env.Client.Host,
	}
	l.base.Access(fields, env.Method+" "+string(env.Path))
}
