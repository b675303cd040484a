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

// Package request implements the bridge between one parsed HTTP request
// and one invocation of the application: it pumps body bytes into Receive
// on demand, serializes the application's response events onto the
// transport, and drives the zero-copy sendfile path.
package request

import (
	"context"
	"sync"

	"github.com/sabouaram/gaspi/flowgate"
	"github.com/sabouaram/gaspi/gateway"
	"github.com/sabouaram/gaspi/h1"
	"github.com/sabouaram/gaspi/logger"
	"github.com/sabouaram/gaspi/metrics"
	"github.com/sabouaram/gaspi/sendfile"
)

// noBodyMethods are the methods for which Receive must answer immediately
// rather than waiting on body bytes that will never arrive.
var noBodyMethods = map[string]bool{
	"GET":     true,
	"HEAD":    true,
	"OPTIONS": true,
}

// Transport is the connection-side collaborator a Runner writes its
// response onto. conn.Connection implements it; Runner never touches a
// net.Conn or socket fd directly.
type Transport interface {
	// Write sends p on the wire, honoring the connection's flow gate.
	Write(ctx context.Context, p []byte) error
	// SocketFD returns the underlying file descriptor for sendfile.
	SocketFD() (int, error)
	// Gate returns the connection's write back-pressure latch.
	Gate() *flowgate.Gate
	// Context returns the connection's own lifetime, which outlives any
	// single request's Run call.
	Context() context.Context
}

// latch is a single-slot, signal-once-observe-once notification used for
// "new body bytes are available (or the message completed)". It mirrors
// asyncio.Event closely enough for single-producer/single-consumer use:
// a pending Signal is retained until the next Wait consumes it.
type latch struct {
	ch chan struct{}
}

func newLatch() *latch { return &latch{ch: make(chan struct{}, 1)} }

func (l *latch) Signal() {
	select {
	case l.ch <- struct{}{}:
	default:
	}
}

func (l *latch) Wait(ctx context.Context) error {
	select {
	case <-l.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Runner drives exactly one application invocation for one parsed HTTP
// request. It is created on headers_complete and discarded once the
// response terminates.
type Runner struct {
	env       *gateway.Env
	app       gateway.Application
	transport Transport
	log       logger.Logger

	onResponseComplete func()
	onAccess           func(status int, bytesOut int64)

	mu               sync.Mutex
	body             []byte
	messageComplete  bool
	moreBody         bool
	zeroCopyInFlight bool
	finished         bool
	status           int
	bytesOut         int64

	event *latch
}

// New constructs a Runner. messageComplete is true up front for methods
// with no request body, and for any request whose final body chunk has
// already been parsed before the runner was scheduled.
func New(env *gateway.Env, app gateway.Application, transport Transport, log logger.Logger, messageComplete bool, onResponseComplete func()) *Runner {
	return &Runner{
		env:                env,
		app:                app,
		transport:          transport,
		log:                log,
		onResponseComplete: onResponseComplete,
		messageComplete:    messageComplete,
		event:              newLatch(),
	}
}

// SetOnResponseComplete overrides the completion callback. Connection
// construction needs the Runner's own address to build this closure, so it
// is set after New returns rather than passed in.
func (r *Runner) SetOnResponseComplete(fn func()) {
	r.mu.Lock()
	r.onResponseComplete = fn
	r.mu.Unlock()
}

// SetOnAccess registers a callback fired once, after the response
// terminates, with the final status code (0 if the app never sent
// http.response.start) and total response body bytes written. Used by the
// connection engine to feed accesslog.Logger without the runner depending
// on that package directly.
func (r *Runner) SetOnAccess(fn func(status int, bytesOut int64)) {
	r.mu.Lock()
	r.onAccess = fn
	r.mu.Unlock()
}

// SetBody appends newly parsed body bytes and wakes any pending Receive.
func (r *Runner) SetBody(b []byte) {
	if len(b) == 0 {
		return
	}
	r.mu.Lock()
	r.body = append(r.body, b...)
	r.mu.Unlock()
	r.event.Signal()
}

// SetMessageComplete marks that the parser has seen the full request and
// wakes any pending Receive so it can return the final (possibly empty)
// chunk with more_body=false.
func (r *Runner) SetMessageComplete() {
	r.mu.Lock()
	r.messageComplete = true
	r.mu.Unlock()
	r.event.Signal()
}

func (r *Runner) clearZeroCopyInFlight() {
	r.mu.Lock()
	r.zeroCopyInFlight = false
	r.mu.Unlock()
}

func (r *Runner) drainBody() ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	body := r.body
	r.body = nil
	return body, r.messageComplete
}

// Run invokes the application and fires onResponseComplete exactly once: as
// soon as it returns if the response isn't still producing more body and no
// zero-copy transfer was left running, or later, from the background
// sendfile goroutine, once that transfer actually finishes (spec.md §4.5 —
// completion fires after the sendfile loop ends, not when the application
// callback returns). Ordering of the next pipelined request's headers
// against those in-flight bytes is the connection engine's concern, not
// this runner's.
func (r *Runner) Run(ctx context.Context) error {
	err := r.app(ctx, r.env, r.receive, r.send)

	r.mu.Lock()
	done := !r.moreBody && !r.zeroCopyInFlight
	r.mu.Unlock()
	if done {
		r.finish()
	}
	return err
}

// finish fires onAccess and onResponseComplete exactly once, however Run
// terminates: synchronously when the application's last event left nothing
// outstanding, or from the zerocopysend goroutine once the transfer ends.
func (r *Runner) finish() {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	complete := r.onResponseComplete
	access := r.onAccess
	status, bytesOut := r.status, r.bytesOut
	r.mu.Unlock()

	if access != nil {
		access(status, bytesOut)
	}
	if complete != nil {
		complete()
	}
}

func (r *Runner) receive(ctx context.Context) (gateway.Event, error) {
	if noBodyMethods[r.env.Method] {
		r.mu.Lock()
		complete := r.messageComplete
		r.mu.Unlock()
		return gateway.Event{Type: gateway.EventHTTPRequest, Body: nil, MoreBody: !complete}, nil
	}

	if err := r.event.Wait(ctx); err != nil {
		return gateway.Event{}, err
	}
	body, complete := r.drainBody()
	return gateway.Event{Type: gateway.EventHTTPRequest, Body: body, MoreBody: !complete}, nil
}

func (r *Runner) send(ctx context.Context, ev gateway.Event) error {
	switch ev.Type {
	case gateway.EventHTTPResponseStart:
		r.mu.Lock()
		r.status = ev.Status
		r.mu.Unlock()
		buf := h1.EncodeResponseHeader(ev.Status, r.env.HTTPVersion, ev.Headers)
		return r.transport.Write(ctx, buf)

	case gateway.EventHTTPResponseBody:
		r.mu.Lock()
		r.moreBody = ev.MoreBody
		r.bytesOut += int64(len(ev.Body))
		r.mu.Unlock()
		if len(ev.Body) > 0 {
			return r.transport.Write(ctx, ev.Body)
		}
		return nil

	case gateway.EventHTTPResponseZeroCopySend:
		r.mu.Lock()
		r.zeroCopyInFlight = true
		r.mu.Unlock()

		outFd, err := r.transport.SocketFD()
		if err != nil {
			r.clearZeroCopyInFlight()
			return err
		}
		count := ev.Count
		if count <= 0 {
			count = sendfile.DefaultCount
		}
		size, err := fileSize(ev.File)
		if err != nil {
			r.clearZeroCopyInFlight()
			return err
		}
		gate := r.transport.Gate()
		bgCtx := r.transport.Context()
		go func() {
			err := sendfile.Loop(bgCtx, gate, outFd, ev.File, size, count)
			if err != nil {
				r.log.Entry(logger.WarnLevel, "sendfile transfer ended early").ErrorAdd(err).Log()
			} else {
				metrics.SendfileTransfersTotal.Inc()
				metrics.SendfileBytesTotal.Add(float64(size))
			}
			r.clearZeroCopyInFlight()
			r.finish()
		}()
		return nil

	default:
		return nil
	}
}
