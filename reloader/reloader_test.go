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

package reloader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sabouaram/gaspi/logger"
)

func TestRunRejectsMultipleWorkers(t *testing.T) {
	log := logger.New(context.Background())
	r := New("/tmp/whatever.yaml", 2, log, nil)
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected error for workers != 1")
	}
}

func TestRunInvokesOnReloadOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gaspi.yaml")
	if err := os.WriteFile(path, []byte("port: 8000\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	log := logger.New(context.Background())
	reloaded := make(chan struct{}, 1)
	r := New(path, 1, log, func() {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("port: 9000\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("expected onReload to fire after config file write")
	}
}
