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

// Package worker is the child-process entry point the arbiter execs into:
// it adopts the inherited listening socket, runs one server.Server against
// it, traps SIGINT/SIGTERM for a graceful stop, and emits a liveness
// heartbeat back to the arbiter over an inherited pipe.
package worker

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sabouaram/gaspi/accesslog"
	"github.com/sabouaram/gaspi/gateway"
	"github.com/sabouaram/gaspi/logger"
	"github.com/sabouaram/gaspi/server"
)

// ListenerFD and HeartbeatFD are the well-known inherited file descriptor
// numbers the arbiter sets up via exec.Cmd.ExtraFiles before forking a
// worker: 0-2 are stdio, so the first two ExtraFiles entries land at 3
// and 4.
const (
	ListenerFD  = 3
	HeartbeatFD = 4
)

// Config is the subset of process configuration a worker needs.
type Config struct {
	RootPath        string
	LifespanEnabled bool
	AccessLog       bool
	TLS             *tls.Config // nil for plain HTTP
}

// Run adopts the inherited listener and heartbeat pipe and blocks for the
// life of the worker process: it serves connections until SIGINT/SIGTERM
// arrives or ctx is canceled, then cancels in-flight requests and waits
// for them to unwind before returning. Intended to be called from cmd/gaspi's run-worker command in
// the child process, never directly from the arbiter.
func Run(ctx context.Context, app gateway.Application, cfg Config, log logger.Logger) error {
	listenerFile := os.NewFile(uintptr(ListenerFD), "gaspi-listener")
	if listenerFile == nil {
		return os.ErrInvalid
	}

	hb := newHeartbeatSender(os.NewFile(uintptr(HeartbeatFD), "gaspi-heartbeat"))
	defer hb.Close()

	var accessLogger *accesslog.Logger
	if cfg.AccessLog {
		accessLogger = accesslog.New(log)
	}

	srv := server.New(app, server.Config{
		RootPath:        cfg.RootPath,
		LifespanEnabled: cfg.LifespanEnabled,
		AccessLogger:    accessLogger,
		TLS:             cfg.TLS,
	}, log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			log.Entry(logger.InfoLevel, "worker received stop signal").Field("pid", os.Getpid()).Log()
			cancel()
		case <-ctx.Done():
		}
	}()

	heartbeatCtx, heartbeatCancel := context.WithCancel(context.Background())
	defer heartbeatCancel()
	go hb.Loop(heartbeatCtx, srv, time.Second)

	log.Entry(logger.InfoLevel, "worker running").Field("pid", os.Getpid()).Log()
	err := srv.Run(runCtx, listenerFile)
	log.Entry(logger.InfoLevel, "worker stopped").Field("pid", os.Getpid()).Log()
	return err
}
