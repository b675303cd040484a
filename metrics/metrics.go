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

// Package metrics exposes connection, request, sendfile and worker
// liveness counters on a side HTTP listener via the default
// prometheus/client_golang registry and handler.
package metrics

import (
	"context"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gaspi_connections_total",
		Help: "Total TCP connections accepted.",
	})
	RequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gaspi_requests_total",
		Help: "Total HTTP requests parsed off the wire.",
	})
	SendfileTransfersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gaspi_sendfile_transfers_total",
		Help: "Total zero-copy sendfile transfers completed.",
	})
	SendfileBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gaspi_sendfile_bytes_total",
		Help: "Total bytes moved via zero-copy sendfile.",
	})
	WorkerConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gaspi_worker_connections",
		Help: "Live connections per worker, keyed by pid.",
	}, []string{"pid"})
	WorkerTasks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gaspi_worker_tasks",
		Help: "In-flight request tasks per worker, keyed by pid.",
	}, []string{"pid"})
)

// Serve starts the metrics HTTP endpoint on addr and blocks until ctx is
// canceled, then shuts the listener down. Intended to run in its own
// goroutine from the arbiter, which is the one long-lived process able to
// aggregate every worker's heartbeat-derived gauges.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		return err
	}
}
