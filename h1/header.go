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

// Package h1 holds the two leaf pieces of the HTTP/1.1 engine that have no
// dependency on anything else in gaspi: the response status-line/header
// encoder and the incremental request parser adapter.
package h1

import (
	"strconv"
)

// Header is a single raw (name, value) pair. Names and values are kept as
// byte slices, not strings: the wire format never requires decoding them,
// and an application that wants case-preserving, order-preserving headers
// (as the gateway contract demands) gets exactly the bytes it supplied.
type Header struct {
	Name  []byte
	Value []byte
}

// reasonPhrases covers the status codes applications are overwhelmingly
// likely to send; anything else goes out with no reason phrase, which is
// legal HTTP/1.1 and exactly what the encoder contract allows.
var reasonPhrases = map[int]string{
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	304: "Not Modified",
	307: "Temporary Redirect",
	308: "Permanent Redirect",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	409: "Conflict",
	410: "Gone",
	413: "Payload Too Large",
	414: "URI Too Long",
	415: "Unsupported Media Type",
	429: "Too Many Requests",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
}

// EncodeResponseHeader writes "HTTP/<version> <status>[ <reason>]\r\n",
// followed by one "name: value\r\n" line per header and a terminating
// blank line, into a single contiguous buffer. It does not validate header
// names or values — a misbehaving application can produce an invalid
// response, which is its prerogative.
func EncodeResponseHeader(status int, httpVersion string, headers []Header) []byte {
	size := len("HTTP/") + len(httpVersion) + 1 + 3 + 2
	if reason, ok := reasonPhrases[status]; ok {
		size += 1 + len(reason)
	}
	for _, h := range headers {
		size += len(h.Name) + 2 + len(h.Value) + 2
	}
	size += 2

	buf := make([]byte, 0, size)
	buf = append(buf, "HTTP/"...)
	buf = append(buf, httpVersion...)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, int64(status), 10)
	if reason, ok := reasonPhrases[status]; ok {
		buf = append(buf, ' ')
		buf = append(buf, reason...)
	}
	buf = append(buf, '\r', '\n')

	for _, h := range headers {
		buf = append(buf, h.Name...)
		buf = append(buf, ':', ' ')
		buf = append(buf, h.Value...)
		buf = append(buf, '\r', '\n')
	}
	buf = append(buf, '\r', '\n')
	return buf
}
