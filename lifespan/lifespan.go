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

// Package lifespan implements the minimal startup/shutdown handshake the
// server performs with the application, once per server instance: a
// single background task services a single-slot event queue and the
// application signals completion (or failure) back through two latches.
package lifespan

import (
	"context"
	"sync"

	"github.com/sabouaram/gaspi/gateway"
)

// State is the shared, mutable application-state mapping exposed by
// reference to every request environment. The core never reads or writes
// it; ownership is entirely the application's.
type State map[string]interface{}

// Coordinator runs the lifespan protocol for one Application. Exactly one
// Coordinator exists per server; its Run method must be started as its own
// goroutine before Startup is called.
type Coordinator struct {
	app   gateway.Application
	state State

	queue chan gateway.Event

	startupDone  chan struct{}
	shutdownDone chan struct{}

	mu              sync.Mutex
	startupComplete  bool
	shutdownComplete bool
	message          string
}

// New returns a Coordinator bound to app. Per the source behavior this
// generalizes, startupComplete/shutdownComplete both start true — they
// only flip to false when the application explicitly reports a failure.
func New(app gateway.Application) *Coordinator {
	return &Coordinator{
		app:              app,
		state:            State{},
		queue:            make(chan gateway.Event, 1),
		startupDone:      make(chan struct{}),
		shutdownDone:     make(chan struct{}),
		startupComplete:  true,
		shutdownComplete: true,
	}
}

// State returns the shared application-state mapping, to be threaded into
// every request Env by reference.
func (c *Coordinator) State() State { return c.state }

// Run services the application's lifespan invocation until ctx is
// canceled. It must be started once, before Startup is called, and any
// panic or error from the application is swallowed by design — lifespan
// support is optional from the gateway's point of view.
func (c *Coordinator) Run(ctx context.Context) {
	defer func() { recover() }()

	env := &gateway.Env{
		Type:           "lifespan",
		GatewayVersion: gateway.GatewayVersion,
		SpecVersion:    gateway.SpecVersion,
		State:          c.state,
	}

	_ = c.app(ctx, env, c.receive, c.send)
}

func (c *Coordinator) receive(ctx context.Context) (gateway.Event, error) {
	select {
	case ev := <-c.queue:
		return ev, nil
	case <-ctx.Done():
		return gateway.Event{}, ctx.Err()
	}
}

func (c *Coordinator) send(_ context.Context, ev gateway.Event) error {
	switch ev.Type {
	case gateway.EventLifespanStartupComplete:
		closeOnce(c.startupDone)
	case gateway.EventLifespanStartupFailed:
		c.mu.Lock()
		c.startupComplete = false
		c.message = ev.Message
		c.mu.Unlock()
		closeOnce(c.startupDone)
	case gateway.EventLifespanShutdownComplete:
		closeOnce(c.shutdownDone)
	case gateway.EventLifespanShutdownFailed:
		c.mu.Lock()
		c.shutdownComplete = false
		c.message = ev.Message
		c.mu.Unlock()
		closeOnce(c.shutdownDone)
	}
	return nil
}

// Startup posts lifespan.startup and blocks until the application
// acknowledges it, returning an error built from the application's
// reported failure message if it signaled lifespan.startup.failed.
func (c *Coordinator) Startup(ctx context.Context) error {
	select {
	case c.queue <- gateway.Event{Type: gateway.EventLifespanStartup}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-c.startupDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.startupComplete {
		return errLifespanFailed("startup", c.message)
	}
	return nil
}

// Shutdown posts lifespan.shutdown and blocks until acknowledged.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	select {
	case c.queue <- gateway.Event{Type: gateway.EventLifespanShutdown}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-c.shutdownDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.shutdownComplete {
		return errLifespanFailed("shutdown", c.message)
	}
	return nil
}

func closeOnce(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}
