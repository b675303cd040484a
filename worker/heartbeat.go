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

package worker

import (
	"context"
	"encoding/json"
	"os"
	"time"
)

// Heartbeat is the liveness payload a worker sends to the arbiter once a
// second, grounded on the original worker's alive() thread.
type Heartbeat struct {
	PID            int   `json:"pid"`
	NumConnections int   `json:"num_connections"`
	NumTasks       int   `json:"num_tasks"`
	Timestamp      int64 `json:"ts"`
}

// liveServer is the subset of server.Server the heartbeat loop needs.
type liveServer interface {
	ConnectionCount() int
	TaskCount() int
}

type heartbeatSender struct {
	enc *json.Encoder
	f   *os.File
}

func newHeartbeatSender(f *os.File) *heartbeatSender {
	if f == nil {
		return &heartbeatSender{}
	}
	return &heartbeatSender{enc: json.NewEncoder(f), f: f}
}

func (h *heartbeatSender) Close() {
	if h.f != nil {
		h.f.Close()
	}
}

// Loop sends a Heartbeat every interval until ctx is canceled. Encoding
// errors (the arbiter has gone away, the pipe is closed) stop the loop
// silently rather than crash the worker — a lost heartbeat channel isn't a
// reason to stop serving requests.
func (h *heartbeatSender) Loop(ctx context.Context, srv liveServer, interval time.Duration) {
	if h.enc == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hb := Heartbeat{
				PID:            os.Getpid(),
				NumConnections: srv.ConnectionCount(),
				NumTasks:       srv.TaskCount(),
				Timestamp:      time.Now().Unix(),
			}
			if err := h.enc.Encode(hb); err != nil {
				return
			}
		}
	}
}
