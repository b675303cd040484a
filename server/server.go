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

// Package server owns the listening socket and the set of live
// connections and in-flight request tasks for one worker. It wires
// together the lifespan coordinator, the TLS factory (if any) and the
// connection engine.
package server

import (
	"context"
	"crypto/tls"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sabouaram/gaspi/accesslog"
	"github.com/sabouaram/gaspi/conn"
	"github.com/sabouaram/gaspi/gateway"
	"github.com/sabouaram/gaspi/lifespan"
	"github.com/sabouaram/gaspi/logger"
	"github.com/sabouaram/gaspi/metrics"
)

// Config is the subset of the validated process configuration Server
// itself consumes.
type Config struct {
	RootPath        string
	LifespanEnabled bool
	AccessLogger    *accesslog.Logger // nil disables access logging
	TLS             *tls.Config       // nil means plain HTTP
}

// Server holds one worker's listening socket, its set of live connections
// and in-flight tasks, and the lifespan coordinator.
type Server struct {
	app    gateway.Application
	cfg    Config
	log    logger.Logger
	life   *lifespan.Coordinator
	tasks  *taskSet
	ln     net.Listener

	mu    sync.Mutex
	conns map[*conn.Connection]struct{}
}

// New builds a Server bound to an already-created file-descriptor-backed
// listener (from sysnet.Listen, inherited or local).
func New(app gateway.Application, cfg Config, log logger.Logger) *Server {
	return &Server{
		app:   app,
		cfg:   cfg,
		log:   log,
		life:  lifespan.New(app),
		tasks: newTaskSet(),
		conns: make(map[*conn.Connection]struct{}),
	}
}

// Run executes the full server lifecycle against listenerFD: create the
// listener, run lifespan startup, accept connections until ctx is
// canceled, then run lifespan shutdown and wait for the listener to
// drain. It returns once every in-flight task has been canceled and
// joined.
func (s *Server) Run(ctx context.Context, listenerFD *os.File) error {
	ln, err := net.FileListener(listenerFD)
	if err != nil {
		return err
	}
	if s.cfg.TLS != nil {
		ln = tls.NewListener(ln, s.cfg.TLS)
	}
	s.ln = ln

	lifeCtx, lifeCancel := context.WithCancel(context.Background())
	defer lifeCancel()
	go s.life.Run(lifeCtx)

	if s.cfg.LifespanEnabled {
		if err := s.life.Startup(ctx); err != nil {
			s.log.Entry(logger.ErrorLevel, "lifespan startup failed").ErrorAdd(err).Log()
			ln.Close()
			return err
		}
	}

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		s.acceptLoop(ctx, ln)
	}()

	<-ctx.Done()

	ln.Close()
	<-acceptDone

	s.tasks.CancelAll()
	s.tasks.Wait()

	if s.cfg.LifespanEnabled {
		shutdownCtx := context.Background()
		if err := s.life.Shutdown(shutdownCtx); err != nil {
			s.log.Entry(logger.ErrorLevel, "lifespan shutdown failed").ErrorAdd(err).Log()
			return err
		}
	}
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				s.log.Entry(logger.DebugLevel, "accept loop ended").ErrorAdd(err).Log()
				return
			}
		}
		s.handleConnection(nc)
	}
}

func (s *Server) handleConnection(nc net.Conn) {
	metrics.ConnectionsTotal.Inc()
	scheme := "http"
	if s.cfg.TLS != nil {
		scheme = "https"
	}

	c := conn.New(nc, s.app, s.log, s.cfg.RootPath, scheme, s.life.State(), s.tasks.Spawn, s.forgetConnection, s.recordAccess)

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	s.tasks.Spawn(context.Background(), func(ctx context.Context) {
		if err := c.Serve(ctx); err != nil {
			s.log.Entry(logger.DebugLevel, "connection ended").ErrorAdd(err).Log()
		}
	})
}

func (s *Server) recordAccess(connID string, env *gateway.Env, status int, bytesOut int64, start time.Time) {
	if s.cfg.AccessLogger != nil {
		s.cfg.AccessLogger.Record(connID, env, status, bytesOut, start)
	}
}

func (s *Server) forgetConnection(c *conn.Connection) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// ConnectionCount and TaskCount back the worker heartbeat.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) TaskCount() int { return s.tasks.Count() }
