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

// Package arbiter forks N preforked worker processes that all inherit the
// same SO_REUSEPORT listening socket, re-execing this same binary into
// "run-worker" mode for each, multiplexes their stdio back onto the
// arbiter's own stdio, collects their heartbeats, and propagates
// SIGINT/SIGHUP/SIGTERM as a uniform stop signal to every worker.
package arbiter

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	gaspierr "github.com/sabouaram/gaspi/errors"
	"github.com/sabouaram/gaspi/logger"
	"github.com/sabouaram/gaspi/sysnet"
)

// JoinTimeout bounds how long Stop waits for workers to exit on their own
// before giving up and returning — the core never escalates to SIGKILL.
const JoinTimeout = 5 * time.Second

var errNoWorkers = gaspierr.CodeErr(gaspierr.MinPkgArbiter+1, "number of workers must be greater than 0")

// Config drives how many workers to run and how they bind.
type Config struct {
	Host    string
	Port    int
	Backlog int
	Workers int

	// Args are appended to the re-exec'd worker command line, ahead of the
	// implicit "run-worker" subcommand spawnWorker adds.
	Args []string
}

// Arbiter supervises a pool of sibling worker processes sharing one
// listening socket.
type Arbiter struct {
	cfg Config
	log logger.Logger

	mu      sync.Mutex
	workers []*workerHandle
}

type workerHandle struct {
	cmd       *exec.Cmd
	heartbeat *os.File // read end, owned by the arbiter
}

// New constructs an Arbiter. The path of the binary re-exec'd for each
// worker is passed later, to Run.
func New(cfg Config, log logger.Logger) *Arbiter {
	return &Arbiter{cfg: cfg, log: log}
}

// Run creates the shared listening socket, forks cfg.Workers children by
// re-executing exePath (this same binary, os.Executable() at the call site),
// multiplexes their stdio and heartbeats, and blocks until ctx is
// canceled or a stop signal arrives, then stops every worker and returns.
func (a *Arbiter) Run(ctx context.Context, exePath string) error {
	if a.cfg.Workers <= 0 {
		return errNoWorkers
	}

	listenerFile, err := sysnet.Listen(sysnet.ListenConfig{
		Host:        a.cfg.Host,
		Port:        a.cfg.Port,
		Backlog:     a.cfg.Backlog,
		Inheritable: true,
	})
	if err != nil {
		return err
	}
	defer listenerFile.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			a.log.Entry(logger.InfoLevel, "arbiter received stop signal").Field("signal", sig.String()).Log()
			cancel()
		case <-ctx.Done():
		}
	}()

	group, groupCtx := errgroup.WithContext(runCtx)

	for i := 0; i < a.cfg.Workers; i++ {
		h, err := a.spawnWorker(exePath, listenerFile, i)
		if err != nil {
			cancel()
			a.stopAll()
			return err
		}
		a.mu.Lock()
		a.workers = append(a.workers, h)
		a.mu.Unlock()

		group.Go(func() error {
			return a.superviseWorker(groupCtx, h)
		})
		group.Go(func() error {
			readHeartbeats(groupCtx, h, a.log)
			return nil
		})
	}

	<-runCtx.Done()
	a.stopAll()

	waitErrCh := make(chan error, 1)
	go func() { waitErrCh <- group.Wait() }()

	select {
	case err := <-waitErrCh:
		return err
	case <-time.After(JoinTimeout):
		a.log.Entry(logger.WarnLevel, "workers did not exit within join timeout").Log()
		return nil
	}
}

func (a *Arbiter) spawnWorker(exePath string, listenerFile *os.File, index int) (*workerHandle, error) {
	hbRead, hbWrite, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(exePath, append(append([]string{}, a.cfg.Args...), "run-worker")...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = nil
	cmd.ExtraFiles = []*os.File{listenerFile, hbWrite}
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		hbRead.Close()
		hbWrite.Close()
		return nil, err
	}
	hbWrite.Close() // arbiter keeps only the read end open

	a.log.Entry(logger.InfoLevel, "worker started").Field("index", index).Field("pid", cmd.Process.Pid).Log()
	return &workerHandle{cmd: cmd, heartbeat: hbRead}, nil
}

func (a *Arbiter) superviseWorker(ctx context.Context, h *workerHandle) error {
	err := h.cmd.Wait()
	h.heartbeat.Close()
	pid := h.cmd.Process.Pid
	if err != nil {
		a.log.Entry(logger.WarnLevel, "worker exited").Field("pid", pid).ErrorAdd(err).Log()
	} else {
		a.log.Entry(logger.InfoLevel, "worker exited").Field("pid", pid).Log()
	}

	a.mu.Lock()
	for i, w := range a.workers {
		if w == h {
			a.workers = append(a.workers[:i], a.workers[i+1:]...)
			break
		}
	}
	a.mu.Unlock()

	// TODO: respawn the worker here once the arbiter is meant to keep the
	// pool at cfg.Workers across unexpected exits; today a crash just
	// shrinks the pool until the next restart.
	return nil
}

// stopAll signals every worker to begin a graceful shutdown by forwarding
// SIGTERM, matching the uniform stop semantics the arbiter itself received.
func (a *Arbiter) stopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, h := range a.workers {
		if h.cmd.Process != nil {
			_ = h.cmd.Process.Signal(syscall.SIGTERM)
		}
	}
}

