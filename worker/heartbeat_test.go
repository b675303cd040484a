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
	"testing"
	"time"
)

type fakeServer struct {
	conns, tasks int
}

func (f *fakeServer) ConnectionCount() int { return f.conns }
func (f *fakeServer) TaskCount() int       { return f.tasks }

func TestHeartbeatSenderEmitsJSONLines(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer r.Close()

	hb := newHeartbeatSender(w)
	srv := &fakeServer{conns: 3, tasks: 1}

	ctx, cancel := context.WithCancel(context.Background())
	go hb.Loop(ctx, srv, 10*time.Millisecond)

	dec := json.NewDecoder(r)
	var got Heartbeat
	if err := dec.Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.NumConnections != 3 || got.NumTasks != 1 {
		t.Fatalf("unexpected heartbeat %+v", got)
	}

	cancel()
	hb.Close()
}

func TestHeartbeatSenderNilFileIsNoop(t *testing.T) {
	hb := newHeartbeatSender(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hb.Loop(ctx, &fakeServer{}, time.Millisecond) // must return promptly, not panic
	hb.Close()
}
