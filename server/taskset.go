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

package server

import (
	"context"
	"sync"
)

// taskSet tracks every in-flight connection-serving and request-running
// goroutine the server has spawned, so a graceful shutdown can cancel all
// of them and wait for them to unwind (spec.md §9 "Runner collection").
// It satisfies conn.Spawn.
type taskSet struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	cancel map[int]context.CancelFunc
	next   int
}

func newTaskSet() *taskSet {
	return &taskSet{cancel: make(map[int]context.CancelFunc)}
}

// Spawn runs fn in its own goroutine under a context derived from parent,
// tracked so CancelAll/Wait can drain it during shutdown.
func (t *taskSet) Spawn(parent context.Context, fn func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(parent)

	t.mu.Lock()
	id := t.next
	t.next++
	t.cancel[id] = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			t.mu.Lock()
			delete(t.cancel, id)
			t.mu.Unlock()
			cancel()
		}()
		fn(ctx)
	}()
}

// CancelAll cancels every task currently tracked. Tasks spawned after this
// call returns are not covered by it.
func (t *taskSet) CancelAll() {
	t.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(t.cancel))
	for _, c := range t.cancel {
		cancels = append(cancels, c)
	}
	t.mu.Unlock()

	for _, c := range cancels {
		c()
	}
}

// Wait blocks until every spawned task has returned.
func (t *taskSet) Wait() { t.wg.Wait() }

// Count reports the number of tasks currently in flight.
func (t *taskSet) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.cancel)
}
