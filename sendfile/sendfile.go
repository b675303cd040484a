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

// Package sendfile drives the zero-copy file-to-socket transfer loop used
// by http.response.zerocopysend. All copying happens in the kernel via
// golang.org/x/sys/unix.Sendfile; userspace only tracks the offset and
// waits on a flowgate.Gate between syscalls.
package sendfile

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sys/unix"

	gaspierr "github.com/sabouaram/gaspi/errors"
	"github.com/sabouaram/gaspi/flowgate"
)

var ErrConnectionClosed = gaspierr.CodeErr(gaspierr.MinPkgRunner+1, "connection closed during sendfile")

// DefaultCount is the per-syscall transfer size used when the caller does
// not specify one.
const DefaultCount = 512

// Loop transfers count-sized chunks of the file at inFd to outFd starting
// at offset 0, until size bytes have been sent. Before every syscall it
// waits on gate.AwaitWritable, so no sendfile is attempted while the
// connection's write side is paused. A zero-byte return from Sendfile
// means the peer has closed the socket and is reported as
// ErrConnectionClosed; EAGAIN yields the goroutine and retries.
func Loop(ctx context.Context, gate *flowgate.Gate, outFd, inFd int, size int64, count int) error {
	if count <= 0 {
		count = DefaultCount
	}

	var offset int64
	for offset < size {
		remaining := size - offset
		n := int64(count)
		if n > remaining {
			n = remaining
		}
		if n == 0 {
			break
		}

		if err := gate.AwaitWritable(ctx); err != nil {
			return err
		}

		off := offset
		sent, err := unix.Sendfile(outFd, inFd, &off, int(n))
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				runtime.Gosched()
				continue
			}
			return err
		}
		if sent == 0 {
			return ErrConnectionClosed
		}
		offset += int64(sent)
	}
	return nil
}
