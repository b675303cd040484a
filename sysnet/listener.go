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

// Package sysnet creates the shared listening socket: IPv4 SOCK_STREAM
// with SO_REUSEPORT so sibling worker processes can all bind the same
// address and let the kernel load-balance accepts, TCP_NODELAY, a
// configurable backlog, and an inheritable flag so it survives fork+exec
// into worker children.
package sysnet

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// DefaultBacklog matches the core's documented default when a config
// doesn't specify one.
const DefaultBacklog = 4096

// ListenConfig is the listener creation contract from CLI/config.
type ListenConfig struct {
	Host        string
	Port        int
	Backlog     int
	Inheritable bool // set when the arbiter will fork workers
}

// Listen creates, binds and listens a SO_REUSEPORT, TCP_NODELAY socket per
// ListenConfig, returning it as an *os.File so it can be handed to
// net.FileListener in-process or passed via exec.Cmd.ExtraFiles to a
// forked worker.
func Listen(cfg ListenConfig) (*os.File, error) {
	backlog := cfg.Backlog
	if backlog <= 0 {
		backlog = DefaultBacklog
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		unix.Close(fd)
		return nil, err
	}

	addr, err := resolveSockaddr(cfg.Host, cfg.Port)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}

	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if cfg.Inheritable {
		// Clear FD_CLOEXEC so the fd survives across exec into a worker.
		flags &^= unix.FD_CLOEXEC
	} else {
		flags |= unix.FD_CLOEXEC
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, flags); err != nil {
		unix.Close(fd)
		return nil, err
	}

	return os.NewFile(uintptr(fd), "gaspi-listener"), nil
}

func resolveSockaddr(host string, port int) (unix.Sockaddr, error) {
	if host == "" {
		host = "0.0.0.0"
	}
	ip := net.ParseIP(host)
	if ip == nil {
		resolved, err := net.ResolveIPAddr("ip4", host)
		if err != nil {
			return nil, err
		}
		ip = resolved.IP
	}
	ip4 := ip.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	var addr unix.SockaddrInet4
	addr.Port = port
	copy(addr.Addr[:], ip4)
	return &addr, nil
}

// FileListener adapts an inherited or freshly created listening socket fd
// into a standard net.Listener.
func FileListener(f *os.File) (net.Listener, error) {
	return net.FileListener(f)
}
