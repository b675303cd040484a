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

package h1

import (
	"testing"
)

type recorder struct {
	begins   int
	urls     [][]byte
	headers  [][2]string
	complete []bool // per message, on headers_complete
	bodies   [][]byte
	msgDone  int
}

func (r *recorder) OnMessageBegin() { r.begins++ }
func (r *recorder) OnURL(u []byte) {
	cp := append([]byte(nil), u...)
	r.urls = append(r.urls, cp)
}
func (r *recorder) OnHeader(name, value []byte) {
	r.headers = append(r.headers, [2]string{string(name), string(value)})
}
func (r *recorder) OnHeadersComplete() { r.complete = append(r.complete, true) }
func (r *recorder) OnBody(b []byte) {
	cp := append([]byte(nil), b...)
	r.bodies = append(r.bodies, cp)
}
func (r *recorder) OnMessageComplete() { r.msgDone++ }

func TestParserSimpleGET(t *testing.T) {
	r := &recorder{}
	p := New(r)

	n, err := p.Execute([]byte("GET /hello HTTP/1.1\r\nHost: x\r\n\r\n"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n != len("GET /hello HTTP/1.1\r\nHost: x\r\n\r\n") {
		t.Fatalf("unexpected consumed count: %d", n)
	}
	if r.begins != 1 || r.msgDone != 1 {
		t.Fatalf("expected one message, got begins=%d done=%d", r.begins, r.msgDone)
	}
	if string(p.Method()) != "GET" {
		t.Fatalf("method = %q", p.Method())
	}
	if string(r.urls[0]) != "/hello" {
		t.Fatalf("url = %q", r.urls[0])
	}
	if !p.ShouldKeepAlive() {
		t.Fatal("expected keep-alive on HTTP/1.1 with no Connection header")
	}
}

func TestParserSplitAcrossCalls(t *testing.T) {
	r := &recorder{}
	p := New(r)

	whole := "POST /x HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"
	for i := 0; i < len(whole); i++ {
		if _, err := p.Execute([]byte{whole[i]}); err != nil {
			t.Fatalf("Execute at byte %d: %v", i, err)
		}
	}
	if r.msgDone != 1 {
		t.Fatalf("expected message complete, got %d", r.msgDone)
	}
	if len(r.bodies) == 0 || string(joinBodies(r.bodies)) != "hello" {
		t.Fatalf("body = %q", joinBodies(r.bodies))
	}
}

func TestParserPipelinedRequests(t *testing.T) {
	r := &recorder{}
	p := New(r)

	wire := "GET /a HTTP/1.1\r\nHost: x\r\n\r\nGET /b HTTP/1.1\r\nHost: x\r\n\r\n"
	if _, err := p.Execute([]byte(wire)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.begins != 2 || r.msgDone != 2 {
		t.Fatalf("expected two messages, got begins=%d done=%d", r.begins, r.msgDone)
	}
	if string(r.urls[0]) != "/a" || string(r.urls[1]) != "/b" {
		t.Fatalf("urls = %q", r.urls)
	}
}

func TestParserConnectionClose(t *testing.T) {
	r := &recorder{}
	p := New(r)
	p.SetLenientDataAfterClose(true)

	wire := "GET / HTTP/1.1\r\nConnection: close\r\n\r\n"
	if _, err := p.Execute([]byte(wire)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if p.ShouldKeepAlive() {
		t.Fatal("expected keep-alive false after Connection: close")
	}

	// Trailing junk after close must not error in lenient mode.
	if _, err := p.Execute([]byte("garbage\r\n")); err != nil {
		t.Fatalf("trailing junk should be swallowed, got: %v", err)
	}
}

func TestParserChunkedBody(t *testing.T) {
	r := &recorder{}
	p := New(r)

	wire := "POST /x HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"
	if _, err := p.Execute([]byte(wire)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.msgDone != 1 {
		t.Fatalf("expected message complete, got %d", r.msgDone)
	}
	if string(joinBodies(r.bodies)) != "Wikipedia" {
		t.Fatalf("body = %q", joinBodies(r.bodies))
	}
}

func joinBodies(bs [][]byte) []byte {
	var out []byte
	for _, b := range bs {
		out = append(out, b...)
	}
	return out
}
