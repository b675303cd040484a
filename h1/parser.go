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
	"bytes"
	"strconv"

	gaspierr "github.com/sabouaram/gaspi/errors"
)

var (
	errMalformedRequestLine = gaspierr.CodeErr(gaspierr.MinPkgH1+1, "malformed request line")
	errMalformedHeaderLine  = gaspierr.CodeErr(gaspierr.MinPkgH1+2, "malformed header line")
	errUnsupportedVersion   = gaspierr.CodeErr(gaspierr.MinPkgH1+3, "unsupported HTTP version")
	errBadContentLength     = gaspierr.CodeErr(gaspierr.MinPkgH1+4, "invalid Content-Length")
	errBadChunkSize         = gaspierr.CodeErr(gaspierr.MinPkgH1+5, "invalid chunk size")
)

// Callbacks receives the incremental parse events, in the fixed order
// documented on Parser.Execute. Implementations must not retain the byte
// slices passed to OnURL/OnHeader/OnBody beyond the call — the parser
// reuses its internal buffer.
type Callbacks interface {
	OnMessageBegin()
	OnURL(url []byte)
	OnHeader(name, value []byte)
	OnHeadersComplete()
	OnBody(body []byte)
	OnMessageComplete()
}

type parseState int

const (
	stateRequestLine parseState = iota
	stateHeaderLine
	stateBodyContentLength
	stateChunkSize
	stateChunkData
	stateChunkCRLF
	stateChunkTrailer
	stateDone
)

// Parser is an incremental, allocation-light HTTP/1.1 request-line/header/
// body parser. It is fed byte chunks as they arrive off the wire via
// Execute and emits structured callbacks; once a message completes it
// immediately begins parsing the next one out of any buffered remainder,
// which is what makes HTTP/1.1 pipelining possible at the connection layer.
//
// A Parser is bound to exactly one connection and must not be shared.
type Parser struct {
	cb Callbacks

	buf []byte // unconsumed bytes carried across Execute calls
	pos int

	state parseState

	method        []byte
	url           []byte
	httpMinor     int
	headerName    []byte
	keepAlive     bool
	hasLength     bool
	contentLength int64
	remaining     int64
	chunked       bool
	closedAfter   bool // lenient: once true, further Execute calls are no-ops

	lenientDataAfterClose bool
}

// New returns a Parser delivering events to cb.
func New(cb Callbacks) *Parser {
	return &Parser{cb: cb, keepAlive: true}
}

// SetLenientDataAfterClose mirrors the "dangerous leniency" httptools
// exposes: once the parser has decided the connection should close, any
// further bytes (stray client retransmits, pipelined junk) are silently
// discarded rather than raising a parse error.
func (p *Parser) SetLenientDataAfterClose(v bool) {
	p.lenientDataAfterClose = v
}

// Method returns the last parsed request's method, uppercase ASCII.
func (p *Parser) Method() []byte { return p.method }

// ShouldKeepAlive reports whether the connection should remain open after
// the current response completes, per the request's HTTP version and any
// Connection header observed.
func (p *Parser) ShouldKeepAlive() bool { return p.keepAlive }

// HTTPVersion returns the last parsed request's version as "1.0" or "1.1".
func (p *Parser) HTTPVersion() string {
	if p.httpMinor == 0 {
		return "1.0"
	}
	return "1.1"
}

// Execute feeds data into the parser, synchronously driving zero or more
// complete parse cycles (message_begin through message_complete) worth of
// callbacks. It returns the number of bytes consumed from data — always
// len(data) on success, since unconsumed partial tokens are retained
// internally — and a non-nil error on malformed input, after which the
// Parser must not be reused.
func (p *Parser) Execute(data []byte) (int, error) {
	if p.closedAfter {
		if p.lenientDataAfterClose {
			return len(data), nil
		}
		return 0, errMalformedRequestLine
	}

	p.buf = append(p.buf, data...)

	for {
		progressed, err := p.step()
		if err != nil {
			return 0, err
		}
		if !progressed {
			break
		}
	}

	// Compact the buffer so it doesn't grow unbounded across many small
	// Execute calls on a long-lived keep-alive connection.
	if p.pos > 0 {
		p.buf = append(p.buf[:0], p.buf[p.pos:]...)
		p.pos = 0
	}

	return len(data), nil
}

// step attempts one unit of progress (a line, a body chunk) and reports
// whether it made any; false means "need more bytes".
func (p *Parser) step() (bool, error) {
	switch p.state {
	case stateRequestLine:
		line, ok := p.readLine()
		if !ok {
			return false, nil
		}
		if err := p.parseRequestLine(line); err != nil {
			return false, err
		}
		p.cb.OnMessageBegin()
		p.cb.OnURL(p.url)
		p.state = stateHeaderLine
		return true, nil

	case stateHeaderLine:
		line, ok := p.readLine()
		if !ok {
			return false, nil
		}
		if len(line) == 0 {
			return true, p.finishHeaders()
		}
		if err := p.parseHeaderLine(line); err != nil {
			return false, err
		}
		return true, nil

	case stateBodyContentLength:
		if p.remaining == 0 {
			return true, p.finishMessage()
		}
		n := int64(len(p.buf) - p.pos)
		if n == 0 {
			return false, nil
		}
		if n > p.remaining {
			n = p.remaining
		}
		chunk := p.buf[p.pos : p.pos+int(n)]
		p.pos += int(n)
		p.remaining -= n
		p.cb.OnBody(chunk)
		if p.remaining == 0 {
			return true, p.finishMessage()
		}
		return true, nil

	case stateChunkSize:
		line, ok := p.readLine()
		if !ok {
			return false, nil
		}
		size, err := parseChunkSize(line)
		if err != nil {
			return false, err
		}
		if size == 0 {
			p.state = stateChunkTrailer
			return true, nil
		}
		p.remaining = size
		p.state = stateChunkData
		return true, nil

	case stateChunkData:
		n := int64(len(p.buf) - p.pos)
		if n == 0 {
			return false, nil
		}
		if n > p.remaining {
			n = p.remaining
		}
		chunk := p.buf[p.pos : p.pos+int(n)]
		p.pos += int(n)
		p.remaining -= n
		if len(chunk) > 0 {
			p.cb.OnBody(chunk)
		}
		if p.remaining == 0 {
			p.state = stateChunkCRLF
		}
		return true, nil

	case stateChunkCRLF:
		if _, ok := p.readLine(); !ok {
			return false, nil
		}
		p.state = stateChunkSize
		return true, nil

	case stateChunkTrailer:
		line, ok := p.readLine()
		if !ok {
			return false, nil
		}
		if len(line) == 0 {
			return true, p.finishMessage()
		}
		// Trailer headers after the terminal chunk are parsed but not
		// surfaced; the gateway contract has no slot for them.
		return true, nil

	case stateDone:
		if p.closedAfter {
			// Connection is going away; anything still buffered is trailing
			// junk the lenient mode is meant to swallow rather than parse.
			p.pos = len(p.buf)
			return false, nil
		}
		p.resetForNextMessage()
		return true, nil
	}
	return false, nil
}

// readLine returns the next CRLF- or LF-terminated line (sans terminator)
// starting at p.pos, or ok=false if the buffer doesn't yet contain one.
func (p *Parser) readLine() ([]byte, bool) {
	rest := p.buf[p.pos:]
	idx := bytes.IndexByte(rest, '\n')
	if idx < 0 {
		return nil, false
	}
	end := idx
	if end > 0 && rest[end-1] == '\r' {
		end--
	}
	line := rest[:end]
	p.pos += idx + 1
	return line, true
}

func (p *Parser) parseRequestLine(line []byte) error {
	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) != 3 {
		return errMalformedRequestLine
	}
	p.method = bytes.ToUpper(parts[0])
	p.url = append(p.url[:0], parts[1]...)

	version := parts[2]
	if !bytes.HasPrefix(version, []byte("HTTP/1.")) || len(version) != 8 {
		return errUnsupportedVersion
	}
	switch version[7] {
	case '0':
		p.httpMinor = 0
		p.keepAlive = false
	case '1':
		p.httpMinor = 1
		p.keepAlive = true
	default:
		return errUnsupportedVersion
	}
	p.hasLength = false
	p.contentLength = 0
	p.chunked = false
	return nil
}

func (p *Parser) parseHeaderLine(line []byte) error {
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		return errMalformedHeaderLine
	}
	name := bytes.TrimSpace(line[:idx])
	value := bytes.TrimSpace(line[idx+1:])
	if len(name) == 0 {
		return errMalformedHeaderLine
	}

	lower := bytes.ToLower(name)
	switch string(lower) {
	case "content-length":
		n, err := strconv.ParseInt(string(value), 10, 64)
		if err != nil || n < 0 {
			return errBadContentLength
		}
		p.hasLength = true
		p.contentLength = n
	case "transfer-encoding":
		if bytes.Contains(bytes.ToLower(value), []byte("chunked")) {
			p.chunked = true
		}
	case "connection":
		switch string(bytes.ToLower(value)) {
		case "close":
			p.keepAlive = false
		case "keep-alive":
			if p.httpMinor == 0 {
				p.keepAlive = true
			}
		}
	}

	p.cb.OnHeader(name, value)
	return nil
}

func (p *Parser) finishHeaders() error {
	p.cb.OnHeadersComplete()

	switch {
	case p.chunked:
		p.remaining = 0
		p.state = stateChunkSize
	case p.hasLength && p.contentLength > 0:
		p.remaining = p.contentLength
		p.state = stateBodyContentLength
	default:
		return p.finishMessage()
	}
	return nil
}

func (p *Parser) finishMessage() error {
	p.cb.OnMessageComplete()
	if !p.keepAlive {
		p.closedAfter = true
	}
	p.state = stateDone
	return nil
}

func (p *Parser) resetForNextMessage() {
	p.url = p.url[:0]
	p.headerName = p.headerName[:0]
	p.hasLength = false
	p.contentLength = 0
	p.remaining = 0
	p.chunked = false
	p.state = stateRequestLine
}

func parseChunkSize(line []byte) (int64, error) {
	if idx := bytes.IndexByte(line, ';'); idx >= 0 {
		line = line[:idx]
	}
	line = bytes.TrimSpace(line)
	n, err := strconv.ParseInt(string(line), 16, 64)
	if err != nil || n < 0 {
		return 0, errBadChunkSize
	}
	return n, nil
}
