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

// Package gateway defines the asynchronous application contract gaspi
// hosts: a three-argument callable exchanging typed events with the
// connection engine over receive/send. Everything in this package is a
// plain data type — the wiring that drives it lives in runner and conn.
package gateway

import (
	"context"

	"github.com/sabouaram/gaspi/h1"
)

// EventType names one of the fixed event kinds the gateway contract
// exchanges between the core and the application.
type EventType string

const (
	EventHTTPRequest EventType = "http.request"

	EventHTTPResponseStart       EventType = "http.response.start"
	EventHTTPResponseBody        EventType = "http.response.body"
	EventHTTPResponseZeroCopySend EventType = "http.response.zerocopysend"

	EventLifespanStartup EventType = "lifespan.startup"
	EventLifespanShutdown EventType = "lifespan.shutdown"

	EventLifespanStartupComplete  EventType = "lifespan.startup.complete"
	EventLifespanStartupFailed    EventType = "lifespan.startup.failed"
	EventLifespanShutdownComplete EventType = "lifespan.shutdown.complete"
	EventLifespanShutdownFailed   EventType = "lifespan.shutdown.failed"
)

// Event is the single envelope type flowing through Receive and Send. Only
// the fields relevant to Type are meaningful; this mirrors the gateway
// contract's loosely-typed event mapping without resorting to
// interface{}-keyed maps on the hot path.
type Event struct {
	Type EventType

	// http.request
	Body     []byte
	MoreBody bool

	// http.response.start
	Status  int
	Headers []h1.Header

	// http.response.zerocopysend
	File  int
	Count int

	// lifespan.*.failed
	Message string
}

// Receive is the no-argument awaitable the application calls to obtain the
// next inbound event.
type Receive func(ctx context.Context) (Event, error)

// Send is the single-argument awaitable the application calls to emit an
// outbound event.
type Send func(ctx context.Context, ev Event) error

// Application is the gateway contract: an async callable taking the frozen
// per-request (or per-lifespan) environment plus its receive/send pair.
type Application func(ctx context.Context, env *Env, receive Receive, send Send) error
