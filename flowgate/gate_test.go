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

package flowgate

import (
	"context"
	"testing"
	"time"
)

func TestGateStartsOpen(t *testing.T) {
	g := New()
	if !g.IsOpen() {
		t.Fatal("expected new gate to be open")
	}
	if err := g.AwaitWritable(context.Background()); err != nil {
		t.Fatalf("AwaitWritable on open gate: %v", err)
	}
}

func TestGatePauseBlocksUntilResume(t *testing.T) {
	g := New()
	g.Pause()
	if g.IsOpen() {
		t.Fatal("expected gate to be closed after Pause")
	}

	done := make(chan error, 1)
	go func() {
		done <- g.AwaitWritable(context.Background())
	}()

	select {
	case <-done:
		t.Fatal("AwaitWritable returned before Resume")
	case <-time.After(20 * time.Millisecond):
	}

	g.Resume()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("AwaitWritable after Resume: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("AwaitWritable did not unblock after Resume")
	}
}

func TestGateAwaitWritableRespectsContext(t *testing.T) {
	g := New()
	g.Pause()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := g.AwaitWritable(ctx); err == nil {
		t.Fatal("expected context deadline error, got nil")
	}
}

func TestGatePauseResumeIdempotent(t *testing.T) {
	g := New()
	g.Resume()
	g.Resume()
	if !g.IsOpen() {
		t.Fatal("expected gate open after redundant Resume calls")
	}

	g.Pause()
	g.Pause()
	if g.IsOpen() {
		t.Fatal("expected gate closed after redundant Pause calls")
	}
}
