package transport

import (
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	rcerr "gorc/internal/errors"

	"golang.org/x/sys/unix"
)

// Conn is a connected stream socket in non-blocking mode.  Read
// returns an error satisfying errors.IsWouldBlock when no data is
// queued; Write waits for writability itself and always writes all of
// p unless the connection fails.
type Conn struct {
	fd     int
	remote net.Addr
	local  net.Addr
	closed bool
}

// Fd returns the descriptor to register with the poller.
func (c *Conn) Fd() int { return c.fd }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.remote }

// LocalAddr returns the local address.
func (c *Conn) LocalAddr() net.Addr { return c.local }

func (c *Conn) Read(p []byte) (int, error) {
	if c.closed {
		return 0, rcerr.ErrSessionClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Read(c.fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			return 0, os.NewSyscallError("read", err)
		case n == 0:
			return 0, io.EOF
		}
		return n, nil
	}
}

func (c *Conn) Write(p []byte) (int, error) {
	if c.closed {
		return 0, rcerr.ErrSessionClosed
	}
	written := 0
	for written < len(p) {
		n, err := unix.Write(c.fd, p[written:])
		if n > 0 {
			written += n
		}
		switch {
		case err == nil, err == unix.EINTR:
		case err == unix.EAGAIN:
			if err := waitWritable(c.fd); err != nil {
				return written, err
			}
		default:
			return written, os.NewSyscallError("write", err)
		}
	}
	return written, nil
}

// waitWritable blocks until fd accepts more data.
func waitWritable(fd int) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	for {
		_, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return os.NewSyscallError("poll", err)
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP) != 0 {
			return os.NewSyscallError("write", unix.EPIPE)
		}
		return nil
	}
}

// Shutdown stops both directions of the connection.  A peer that is
// already gone is not an error.
func (c *Conn) Shutdown() error {
	if c.closed {
		return nil
	}
	err := unix.Shutdown(c.fd, unix.SHUT_RDWR)
	if err != nil && err != unix.ENOTCONN {
		return os.NewSyscallError("shutdown", err)
	}
	return nil
}

// Close releases the descriptor.  Subsequent calls are no-ops.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return os.NewSyscallError("close", unix.Close(c.fd))
}

// Listener is a non-blocking listening socket.
type Listener struct {
	fd     int
	addr   net.Addr
	closed bool
}

// Listen binds address and returns the listener detached from the Go
// runtime.  The error is returned unwrapped so callers can map errno
// values to exit codes.
func Listen(network, address string) (*Listener, error) {
	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}
	defer ln.Close()

	sc, ok := ln.(syscall.Conn)
	if !ok {
		return nil, fmt.Errorf("listen %s: %T has no descriptor", address, ln)
	}
	fd, err := detach(sc)
	if err != nil {
		return nil, err
	}
	return &Listener{fd: fd, addr: ln.Addr()}, nil
}

// Fd returns the listening descriptor.
func (l *Listener) Fd() int { return l.fd }

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.addr }

// Accept returns the next pending connection.  With nothing pending it
// returns an error satisfying errors.IsWouldBlock.
func (l *Listener) Accept() (*Conn, error) {
	for {
		nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch {
		case err == unix.EINTR, err == unix.ECONNABORTED:
			continue
		case err != nil:
			return nil, rcerr.Classify("accept", os.NewSyscallError("accept4", err))
		}
		c := &Conn{fd: nfd, remote: sockaddrToTCP(sa)}
		if lsa, err := unix.Getsockname(nfd); err == nil {
			c.local = sockaddrToTCP(lsa)
		}
		return c, nil
	}
}

// Close releases the listening descriptor.
func (l *Listener) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	return os.NewSyscallError("close", unix.Close(l.fd))
}

// FromNetConn detaches a connected socket from nc.  nc is closed; the
// returned Conn owns a duplicate of its descriptor.
func FromNetConn(nc net.Conn) (*Conn, error) {
	defer nc.Close()

	sc, ok := nc.(syscall.Conn)
	if !ok {
		return nil, fmt.Errorf("detach: %T has no descriptor", nc)
	}
	fd, err := detach(sc)
	if err != nil {
		return nil, err
	}
	return &Conn{fd: fd, remote: nc.RemoteAddr(), local: nc.LocalAddr()}, nil
}

// detach duplicates the descriptor behind sc with close-on-exec set and
// switches the copy to non-blocking mode.
func detach(sc syscall.Conn) (int, error) {
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1, err
	}
	nfd := -1
	var dupErr error
	err = raw.Control(func(fd uintptr) {
		nfd, dupErr = unix.FcntlInt(fd, unix.F_DUPFD_CLOEXEC, 0)
	})
	if err != nil {
		return -1, err
	}
	if dupErr != nil {
		return -1, os.NewSyscallError("fcntl", dupErr)
	}
	if err := unix.SetNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		return -1, os.NewSyscallError("setnonblock", err)
	}
	return nfd, nil
}

func sockaddrToTCP(sa unix.Sockaddr) net.Addr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, a.Addr[:])
		return &net.TCPAddr{IP: ip, Port: a.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, a.Addr[:])
		return &net.TCPAddr{IP: ip, Port: a.Port}
	}
	return nil
}
