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
	"net/url"

	"github.com/sabouaram/gaspi/h1"
)

// GatewayVersion and SpecVersion are reported verbatim in every Env so an
// application can branch on the contract revision it was written against.
const (
	GatewayVersion = "2.5"
	SpecVersion    = "2.0"
)

// HostPort is a resolved (host, port) pair, used for both the client and
// server addresses in Env.
type HostPort struct {
	Host string
	Port int
}

// Env is the frozen per-request environment handed to the application. It
// is built once, on headers_complete, and never mutated afterward; every
// field the application reads is a value or an immutable reference.
type Env struct {
	Type string

	GatewayVersion string
	SpecVersion    string

	HTTPVersion string
	Method      string
	Scheme      string

	// Path is percent-decoded only when RawPath contained a '%' byte;
	// otherwise it is identical to RawPath, avoiding a wasted allocation
	// on the overwhelmingly common case.
	Path    string
	RawPath []byte

	QueryString []byte
	RootPath    string

	Headers []h1.Header

	Client HostPort
	Server HostPort

	// State is the lifespan application-state mapping, shared by
	// reference across every request on this server; the core never
	// mutates it.
	State map[string]interface{}
}

// BuildEnv constructs the frozen request environment from parsed request
// data. target is the raw request-URI as it appeared on the wire (path
// plus optional "?query"); headers must already preserve the case and
// order they were received in.
func BuildEnv(method string, target []byte, httpVersion, scheme, rootPath string, headers []h1.Header, client, server HostPort, state map[string]interface{}) *Env {
	rawPath, query := splitTarget(target)

	path := string(rawPath)
	if bytes.IndexByte(rawPath, '%') >= 0 {
		if decoded, err := url.PathUnescape(path); err == nil {
			path = decoded
		}
	}

	return &Env{
		Type:           "http",
		GatewayVersion: GatewayVersion,
		SpecVersion:    SpecVersion,
		HTTPVersion:    httpVersion,
		Method:         method,
		Scheme:         scheme,
		Path:           path,
		RawPath:        rawPath,
		QueryString:    query,
		RootPath:       rootPath,
		Headers:        headers,
		Client:         client,
		Server:         server,
		State:          state,
	}
}

// splitTarget separates a request-target into its raw path and query
// bytes, without requiring the target to be a syntactically valid URL —
// net/url.Parse rejects some bytes (raw '%' sequences, stray characters)
// that a tolerant HTTP/1.1 server must still accept on the request line.
func splitTarget(target []byte) (path, query []byte) {
	if idx := bytes.IndexByte(target, '?'); idx >= 0 {
		return target[:idx], target[idx+1:]
	}
	return target, nil
}
