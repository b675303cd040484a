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

package conn

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sabouaram/gaspi/gateway"
	"github.com/sabouaram/gaspi/logger"
)

// directSpawn runs tasks synchronously in their own goroutine without any
// of server's task-set bookkeeping, sufficient for exercising Connection
// in isolation.
func directSpawn(ctx context.Context, fn func(ctx context.Context)) {
	go fn(ctx)
}

func echoApp(status int, body string) gateway.Application {
	return func(ctx context.Context, env *gateway.Env, receive gateway.Receive, send gateway.Send) error {
		if _, err := receive(ctx); err != nil {
			return err
		}
		if err := send(ctx, gateway.Event{Type: gateway.EventHTTPResponseStart, Status: status}); err != nil {
			return err
		}
		return send(ctx, gateway.Event{Type: gateway.EventHTTPResponseBody, Body: []byte(body)})
	}
}

func TestConnectionSimpleGET(t *testing.T) {
	server, client := net.Pipe()
	log := logger.New(context.Background())

	c := New(server, echoApp(200, "ok"), log, "/", "http", nil, directSpawn, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Serve(ctx)

	if _, err := client.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The status line and the body arrive as separate writes, and net.Pipe
	// hands over one write per Read, so keep reading until both are in.
	client.SetReadDeadline(time.Now().Add(time.Second))
	var got []byte
	buf := make([]byte, 256)
	for len(got) < len("HTTP/1.1 200 OK\r\n\r\nok") {
		n, err := client.Read(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		got = append(got, buf[:n]...)
	}

	if !bytes.Contains(got, []byte("HTTP/1.1 200")) {
		t.Fatalf("expected 200 status line, got %q", got)
	}
	if !bytes.HasSuffix(got, []byte("ok")) {
		t.Fatalf("expected trailing body 'ok', got %q", got)
	}
	client.Close()
}

func TestConnectionPipelinedRequestsPreserveOrder(t *testing.T) {
	server, client := net.Pipe()
	log := logger.New(context.Background())

	var i int
	labels := []string{"FIRST", "SECOND"}
	app := func(ctx context.Context, env *gateway.Env, receive gateway.Receive, send gateway.Send) error {
		if _, err := receive(ctx); err != nil {
			return err
		}
		label := labels[i]
		i++
		if err := send(ctx, gateway.Event{Type: gateway.EventHTTPResponseStart, Status: 200}); err != nil {
			return err
		}
		return send(ctx, gateway.Event{Type: gateway.EventHTTPResponseBody, Body: []byte(label)})
	}

	c := New(server, app, log, "/", "http", nil, directSpawn, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Serve(ctx)

	wire := "GET /a HTTP/1.1\r\nHost: x\r\n\r\nGET /b HTTP/1.1\r\nHost: x\r\n\r\n"
	if _, err := client.Write([]byte(wire)); err != nil {
		t.Fatalf("write: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(time.Second))
	var all []byte
	buf := make([]byte, 256)
	for len(all) < len("HTTP/1.1 200 OK\r\n\r\nFIRST")+len("HTTP/1.1 200 OK\r\n\r\nSECOND") {
		n, err := client.Read(buf)
		if err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("read: %v", err)
		}
		all = append(all, buf[:n]...)
	}

	firstIdx := bytes.Index(all, []byte("FIRST"))
	secondIdx := bytes.Index(all, []byte("SECOND"))
	if firstIdx < 0 || secondIdx < 0 || firstIdx > secondIdx {
		t.Fatalf("expected FIRST response before SECOND, got %q", all)
	}
	client.Close()
}
