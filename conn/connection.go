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

// Package conn implements the per-connection HTTP/1.1 protocol engine: it
// owns the parser, the current request runner, the pipeline of requests
// parsed-but-not-yet-scheduled, and the connection's flow gate. Exactly
// one runner executes at a time per connection (I1), and the pipeline's
// strict FIFO scheduling keeps responses in request order (I2).
package conn

import (
	"bytes"
	"context"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	gaspierr "github.com/sabouaram/gaspi/errors"
	"github.com/sabouaram/gaspi/flowgate"
	"github.com/sabouaram/gaspi/gateway"
	"github.com/sabouaram/gaspi/h1"
	"github.com/sabouaram/gaspi/lifespan"
	"github.com/sabouaram/gaspi/logger"
	"github.com/sabouaram/gaspi/metrics"
	"github.com/sabouaram/gaspi/runner/request"
)

// PipelineDepth bounds how many parsed-but-unscheduled requests a single
// connection may queue before it is refused further pipelining.
const PipelineDepth = 128

var errPipelineFull = gaspierr.CodeErr(gaspierr.MinPkgConn+1, "pipeline depth exceeded")

// Spawn schedules fn as an independent, cancelable task and is expected to
// track it in the owning server's task set so shutdown can cancel
// everything still in flight. Implemented by server.Server.
type Spawn func(parent context.Context, fn func(ctx context.Context))

// readBufferSize is the chunk size read off the socket per iteration.
const readBufferSize = 16 * 1024

// Connection is one TCP (or TLS) connection's protocol engine.
type Connection struct {
	id       string
	ctx      context.Context // the connection's own lifetime, set in Serve
	netConn  net.Conn
	rawConn  syscall.RawConn
	app      gateway.Application
	log      logger.Logger
	rootPath string
	state    lifespan.State
	spawn    Spawn
	onClosed func(*Connection)
	onAccess func(id string, env *gateway.Env, status int, bytesOut int64, start time.Time)

	scheme string
	client gateway.HostPort
	server gateway.HostPort

	gate   *flowgate.Gate
	parser *h1.Parser

	mu              sync.Mutex
	pipeline        []*request.Runner
	pipelineSem     *semaphore.Weighted
	currentRunner   *request.Runner
	currentCancel   context.CancelFunc

	// per-message scratch, valid between message_begin and headers_complete
	method     []byte
	target     []byte
	headers    []h1.Header
	noBodyDone bool
}

// New constructs a Connection bound to netConn. scheme is "http" or
// "https"; onClosed is invoked exactly once, after the connection's read
// loop exits, so the server can drop it from its live-connection set.
// onAccess may be nil to disable access logging; it is invoked once per
// completed request.
func New(netConn net.Conn, app gateway.Application, log logger.Logger, rootPath, scheme string, state lifespan.State, spawn Spawn, onClosed func(*Connection), onAccess func(id string, env *gateway.Env, status int, bytesOut int64, start time.Time)) *Connection {
	c := &Connection{
		id:          uuid.NewString(),
		ctx:         context.Background(),
		netConn:     netConn,
		app:         app,
		log:         log,
		rootPath:    rootPath,
		scheme:      scheme,
		state:       state,
		spawn:       spawn,
		onClosed:    onClosed,
		onAccess:    onAccess,
		gate:        flowgate.New(),
		pipelineSem: semaphore.NewWeighted(PipelineDepth),
	}
	c.server = hostPortOf(netConn.LocalAddr())
	c.client = hostPortOf(netConn.RemoteAddr())
	if sc, ok := netConn.(syscall.Conn); ok {
		if raw, err := sc.SyscallConn(); err == nil {
			c.rawConn = raw
		}
	}
	c.parser = h1.New(c)
	c.parser.SetLenientDataAfterClose(true)
	return c
}

// Serve reads bytes off the socket and feeds the parser until the
// connection closes or ctx is canceled, then fires connection_lost
// bookkeeping. It blocks until the connection is fully torn down.
func (c *Connection) Serve(ctx context.Context) error {
	c.ctx = ctx
	defer c.connectionLost()

	go func() {
		<-ctx.Done()
		c.netConn.Close()
	}()

	buf := make([]byte, readBufferSize)
	for {
		n, err := c.netConn.Read(buf)
		if n > 0 {
			if _, perr := c.parser.Execute(buf[:n]); perr != nil {
				c.log.Entry(logger.WarnLevel, "parse error, closing connection").Field("conn_id", c.id).ErrorAdd(perr).Log()
				return perr
			}
		}
		if err != nil {
			return nil
		}
	}
}

func (c *Connection) connectionLost() {
	c.mu.Lock()
	cancel := c.currentCancel
	c.pipeline = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.netConn.Close()
	if c.onClosed != nil {
		c.onClosed(c)
	}
}

// Write sends p on the wire, honoring the connection's flow gate — the
// generalization of the original design's sendfile-only gating to every
// write path (see runner/request.Transport).
func (c *Connection) Write(ctx context.Context, p []byte) error {
	if err := c.gate.AwaitWritable(ctx); err != nil {
		return err
	}
	_, err := c.netConn.Write(p)
	return err
}

// SocketFD returns the connection's underlying file descriptor for use by
// the sendfile loop.
func (c *Connection) SocketFD() (int, error) {
	if c.rawConn == nil {
		return 0, gaspierr.CodeErr(gaspierr.MinPkgConn+2, "connection has no raw file descriptor")
	}
	var fd int
	var ctrlErr error
	err := c.rawConn.Control(func(f uintptr) { fd = int(f) })
	if err != nil {
		return 0, err
	}
	return fd, ctrlErr
}

// Gate returns the connection's write back-pressure latch.
func (c *Connection) Gate() *flowgate.Gate { return c.gate }

// Context returns the connection's own lifetime context, which outlives any
// single request's Run call — the background zero-copy sendfile transfer
// runs off this context rather than the per-request one, so it isn't
// canceled the instant the application callback that started it returns.
func (c *Connection) Context() context.Context { return c.ctx }

// ID returns the connection's unique identifier, threaded into every
// access-log line the requests on this connection produce.
func (c *Connection) ID() string { return c.id }

// PauseWriting and ResumeWriting are the transport-level hooks a future
// non-blocking writer (or a rate-limiting middleware) drives; wired
// through directly to the flow gate per the widened gate-all-writes
// design.
func (c *Connection) PauseWriting()  { c.gate.Pause() }
func (c *Connection) ResumeWriting() { c.gate.Resume() }

// ---- h1.Callbacks ----

func (c *Connection) OnMessageBegin() {
	metrics.RequestsTotal.Inc()
	c.method = nil
	c.target = c.target[:0]
	c.headers = nil
	c.noBodyDone = false
}

func (c *Connection) OnURL(url []byte) {
	c.target = append(c.target, url...)
}

func (c *Connection) OnHeader(name, value []byte) {
	c.headers = append(c.headers, h1.Header{
		Name:  append([]byte(nil), name...),
		Value: append([]byte(nil), value...),
	})
}

func (c *Connection) OnHeadersComplete() {
	method := string(bytes.ToUpper(c.parser.Method()))
	env := gateway.BuildEnv(method, c.target, c.parser.HTTPVersion(), c.scheme, c.rootPath, c.headers, c.client, c.server, c.state)

	runner := request.New(env, c.app, c, c.log, isNoBodyMethod(method), nil)
	if c.onAccess != nil {
		start := time.Now()
		runner.SetOnAccess(func(status int, bytesOut int64) {
			c.onAccess(c.id, env, status, bytesOut, start)
		})
	}
	c.scheduleOrQueue(runner)
}

func (c *Connection) OnBody(body []byte) {
	c.mu.Lock()
	r := c.currentRunner
	c.mu.Unlock()
	if r != nil {
		r.SetBody(body)
	}
}

func (c *Connection) OnMessageComplete() {
	c.mu.Lock()
	r := c.currentRunner
	c.mu.Unlock()
	if r != nil {
		r.SetMessageComplete()
	}
}

func isNoBodyMethod(method string) bool {
	switch method {
	case "GET", "HEAD", "OPTIONS":
		return true
	default:
		return false
	}
}

// scheduleOrQueue enforces I1: at most one runner executes at a time. A
// freshly headers-complete runner either becomes current (if none is
// running) or joins the tail of the pipeline, to be popped in FIFO order
// as prior runners complete (I2).
func (c *Connection) scheduleOrQueue(r *request.Runner) {
	c.mu.Lock()
	if c.currentRunner == nil {
		c.currentRunner = r
		c.mu.Unlock()
		c.schedule(r)
		return
	}
	if !c.pipelineSem.TryAcquire(1) {
		c.mu.Unlock()
		c.log.Entry(logger.WarnLevel, "pipeline depth exceeded, closing connection").ErrorAdd(errPipelineFull).Log()
		c.netConn.Close()
		return
	}
	c.pipeline = append(c.pipeline, r)
	c.mu.Unlock()
}

func (c *Connection) schedule(r *request.Runner) {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.currentCancel = cancel
	c.mu.Unlock()

	complete := func() { c.onRunnerComplete(r) }
	r.SetOnResponseComplete(complete)

	c.spawn(ctx, func(ctx context.Context) {
		defer cancel()
		if err := r.Run(ctx); err != nil {
			c.log.Entry(logger.DebugLevel, "application invocation ended").ErrorAdd(err).Log()
			c.netConn.Close()
		}
	})
}

func (c *Connection) onRunnerComplete(r *request.Runner) {
	c.mu.Lock()
	if c.currentRunner == r {
		c.currentRunner = nil
		c.currentCancel = nil
	}
	var next *request.Runner
	if len(c.pipeline) > 0 {
		next = c.pipeline[0]
		c.pipeline = c.pipeline[1:]
		c.pipelineSem.Release(1)
		c.currentRunner = next
	}
	c.mu.Unlock()

	if next != nil {
		c.schedule(next)
	}
}

func hostPortOf(addr net.Addr) gateway.HostPort {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return gateway.HostPort{}
	}
	return gateway.HostPort{Host: tcpAddr.IP.String(), Port: tcpAddr.Port}
}
