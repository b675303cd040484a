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

package server

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/sabouaram/gaspi/gateway"
	"github.com/sabouaram/gaspi/logger"
	"github.com/sabouaram/gaspi/sysnet"
)

func echoApp() gateway.Application {
	return func(ctx context.Context, env *gateway.Env, receive gateway.Receive, send gateway.Send) error {
		if _, err := receive(ctx); err != nil {
			return err
		}
		if err := send(ctx, gateway.Event{Type: gateway.EventHTTPResponseStart, Status: 200}); err != nil {
			return err
		}
		return send(ctx, gateway.Event{Type: gateway.EventHTTPResponseBody, Body: []byte("ok")})
	}
}

func TestServerRunServesOneRequestThenShutsDown(t *testing.T) {
	listenerFile, err := sysnet.Listen(sysnet.ListenConfig{Host: "127.0.0.1", Port: 0})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ln, err := sysnet.FileListener(listenerFile)
	if err != nil {
		t.Fatalf("FileListener: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr).String()
	ln.Close() // Server.Run will re-open the fd via net.FileListener

	log := logger.New(context.Background())
	srv := New(echoApp(), Config{RootPath: "/", LifespanEnabled: false}, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, listenerFile) }()

	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if line != "HTTP/1.1 200 OK\r\n" {
		t.Fatalf("unexpected status line %q", line)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Server.Run did not return after shutdown")
	}
}
