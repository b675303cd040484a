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

package arbiter

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/sabouaram/gaspi/logger"
	"github.com/sabouaram/gaspi/metrics"
	"github.com/sabouaram/gaspi/worker"
)

// readHeartbeats decodes one worker.Heartbeat per line off h's pipe until
// it closes (the worker exited) or ctx is canceled, surfacing each as a
// debug-level log entry. The metrics package's gauges are always set from
// the same decoded values; they are only exposed when the metrics endpoint
// is running.
func readHeartbeats(ctx context.Context, h *workerHandle, log logger.Logger) {
	dec := json.NewDecoder(h.heartbeat)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var hb worker.Heartbeat
		if err := dec.Decode(&hb); err != nil {
			return
		}
		pid := strconv.Itoa(hb.PID)
		metrics.WorkerConnections.WithLabelValues(pid).Set(float64(hb.NumConnections))
		metrics.WorkerTasks.WithLabelValues(pid).Set(float64(hb.NumTasks))

		log.Entry(logger.DebugLevel, "worker heartbeat").
			Field("pid", hb.PID).
			Field("connections", hb.NumConnections).
			Field("tasks", hb.NumTasks).
			Log()
	}
}
