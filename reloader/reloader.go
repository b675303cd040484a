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

// Package reloader watches the config file for changes and invokes a
// caller-supplied callback on every write or create event, mirroring the
// original server's watchdog-based reloader. It restarts nothing itself,
// and events are not debounced. It is restricted to the single-worker case, same as the
// original, to avoid racing the arbiter's own process management when
// multiple workers would each need independent coordination.
package reloader

import (
	"context"

	"github.com/fsnotify/fsnotify"

	gaspierr "github.com/sabouaram/gaspi/errors"
	"github.com/sabouaram/gaspi/logger"
)

var errMultiWorkerUnsupported = gaspierr.CodeErr(gaspierr.MinPkgReloader+1, "config reload is only supported with a single worker")

// Reloader watches one file and invokes onReload whenever it's written.
type Reloader struct {
	path     string
	workers  int
	log      logger.Logger
	onReload func()
}

// New constructs a Reloader for path. workers is the configured worker
// count; Run returns errMultiWorkerUnsupported immediately if it isn't 1.
func New(path string, workers int, log logger.Logger, onReload func()) *Reloader {
	return &Reloader{path: path, workers: workers, log: log, onReload: onReload}
}

// Run watches the config file until ctx is canceled.
func (r *Reloader) Run(ctx context.Context) error {
	if r.workers != 1 {
		return errMultiWorkerUnsupported
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(r.path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				r.log.Entry(logger.InfoLevel, "config file changed, reloading").Field("path", r.path).Log()
				if r.onReload != nil {
					r.onReload()
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.log.Entry(logger.WarnLevel, "config watch error").ErrorAdd(err).Log()
		}
	}
}
