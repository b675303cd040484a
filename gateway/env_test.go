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

package gateway

import (
	"bytes"
	"testing"

	"github.com/sabouaram/gaspi/h1"
)

func TestBuildEnvDecodesPercentEncodedPath(t *testing.T) {
	env := BuildEnv("GET", []byte("/a%2Fb"), "1.1", "http", "/srv",
		[]h1.Header{{Name: []byte("Host"), Value: []byte("x")}},
		HostPort{Host: "127.0.0.1", Port: 1234}, HostPort{Host: "0.0.0.0", Port: 8080}, nil)

	if env.Path != "/a/b" {
		t.Fatalf("Path = %q, want /a/b", env.Path)
	}
	if !bytes.Equal(env.RawPath, []byte("/a%2Fb")) {
		t.Fatalf("RawPath = %q", env.RawPath)
	}
}

func TestBuildEnvLeavesPlainPathAlone(t *testing.T) {
	env := BuildEnv("GET", []byte("/plain/path"), "1.1", "http", "/srv", nil, HostPort{}, HostPort{}, nil)
	if env.Path != "/plain/path" {
		t.Fatalf("Path = %q", env.Path)
	}
}

func TestBuildEnvSplitsQueryString(t *testing.T) {
	env := BuildEnv("GET", []byte("/search?q=go+lang"), "1.1", "http", "/srv", nil, HostPort{}, HostPort{}, nil)
	if env.Path != "/search" {
		t.Fatalf("Path = %q", env.Path)
	}
	if string(env.QueryString) != "q=go+lang" {
		t.Fatalf("QueryString = %q", env.QueryString)
	}
}

func TestBuildEnvPreservesHeaderCaseAndOrder(t *testing.T) {
	headers := []h1.Header{
		{Name: []byte("X-Custom"), Value: []byte("1")},
		{Name: []byte("Host"), Value: []byte("example.com")},
	}
	env := BuildEnv("POST", []byte("/"), "1.1", "http", "/srv", headers, HostPort{}, HostPort{}, nil)

	if len(env.Headers) != 2 {
		t.Fatalf("expected 2 headers, got %d", len(env.Headers))
	}
	if string(env.Headers[0].Name) != "X-Custom" || string(env.Headers[1].Name) != "Host" {
		t.Fatalf("headers reordered: %+v", env.Headers)
	}
}
