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

package sysnet

import (
	"io"
	"net"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestListenAcceptsConnection(t *testing.T) {
	f, err := Listen(ListenConfig{Host: "127.0.0.1", Port: 0})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer f.Close()

	ln, err := FileListener(f)
	if err != nil {
		t.Fatalf("FileListener: %v", err)
	}
	defer ln.Close()

	addr := ln.Addr().(*net.TCPAddr)

	accepted := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Write([]byte("hi"))
			conn.Close()
		}
		close(accepted)
	}()

	client, err := net.DialTimeout("tcp", addr.String(), time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	buf, err := io.ReadAll(client)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(buf) != "hi" {
		t.Fatalf("expected 'hi', got %q", buf)
	}
	<-accepted
}

func TestListenSetsReusePort(t *testing.T) {
	f1, err := Listen(ListenConfig{Host: "127.0.0.1", Port: 0})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer f1.Close()

	ln1, err := FileListener(f1)
	if err != nil {
		t.Fatalf("FileListener: %v", err)
	}
	defer ln1.Close()
	port := ln1.Addr().(*net.TCPAddr).Port

	f2, err := Listen(ListenConfig{Host: "127.0.0.1", Port: port})
	if err != nil {
		t.Fatalf("second Listen on same port should succeed under SO_REUSEPORT: %v", err)
	}
	f2.Close()
}

func TestListenInheritableClearsCloexec(t *testing.T) {
	f, err := Listen(ListenConfig{Host: "127.0.0.1", Port: 0, Inheritable: true})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer f.Close()

	flags, err := unix.FcntlInt(f.Fd(), unix.F_GETFD, 0)
	if err != nil {
		t.Fatalf("FcntlInt: %v", err)
	}
	if flags&unix.FD_CLOEXEC != 0 {
		t.Fatalf("expected FD_CLOEXEC cleared, flags=%d", flags)
	}
}

func TestListenDefaultNotInheritable(t *testing.T) {
	f, err := Listen(ListenConfig{Host: "127.0.0.1", Port: 0})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer f.Close()

	flags, err := unix.FcntlInt(f.Fd(), unix.F_GETFD, 0)
	if err != nil {
		t.Fatalf("FcntlInt: %v", err)
	}
	if flags&unix.FD_CLOEXEC == 0 {
		t.Fatalf("expected FD_CLOEXEC set by default, flags=%d", flags)
	}
}
