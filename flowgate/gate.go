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

// Package flowgate implements the binary back-pressure latch every write
// path in gaspi waits on before touching the socket: header writes, body
// writes and the sendfile loop alike. A connection starts writable;
// conn.Connection's PauseWriting closes the gate and ResumeWriting reopens
// it. Nothing in this module calls those hooks from the socket's
// write-buffer level, so the gate stays open unless a caller pauses it.
// There is no counting, no priority, just one open/closed gate per
// connection.
package flowgate

import (
	"context"
	"sync"
)

// Gate is a level-triggered latch, not an edge-triggered one: Resume is
// idempotent, and AwaitWritable returns immediately if the gate is already
// open when called.
type Gate struct {
	mu sync.Mutex
	ch chan struct{}
}

// New returns an open Gate.
func New() *Gate {
	ch := make(chan struct{})
	close(ch)
	return &Gate{ch: ch}
}

// Pause closes the gate, blocking future AwaitWritable callers until the
// next Resume. Safe to call when already paused.
func (g *Gate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.ch:
		g.ch = make(chan struct{})
	default:
	}
}

// Resume opens the gate, releasing every blocked AwaitWritable caller.
// Safe to call when already open.
func (g *Gate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.ch:
	default:
		close(g.ch)
	}
}

// IsOpen reports the current state without blocking.
func (g *Gate) IsOpen() bool {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// AwaitWritable blocks until the gate opens or ctx is done, whichever comes
// first. A connection_lost event cancels ctx so a writer parked here wakes
// up with an error instead of hanging until process exit.
func (g *Gate) AwaitWritable(ctx context.Context) error {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
