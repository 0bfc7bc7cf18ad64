// Package netutil wraps the raw-fd socket primitives the client engine and
// the listener need: setting a connected socket non-blocking, enabling
// TCP_NODELAY, configuring keepalive, and a minimal IPv4 TCP listener
// built directly on golang.org/x/sys/unix rather than net.Listen, because
// the reactor registers raw file descriptors with epoll/kqueue and needs to
// Accept() without going through net.Conn's blocking read/write path.
package netutil

import (
	"golang.org/x/sys/unix"
)

// SetNonblocking puts fd into non-blocking mode, matching anetNonBlock.
func SetNonblocking(fd int) error {
	return unix.SetNonblock(fd, true)
}

// SetNoDelay disables Nagle's algorithm on fd, matching anetEnableTcpNoDelay.
func SetNoDelay(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}

// SetKeepAlive enables SO_KEEPALIVE on fd and, where the platform exposes the
// tunable, sets the idle-probe interval to period seconds, matching
// anetKeepAlive.
func SetKeepAlive(fd int, periodSeconds int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return err
	}
	if periodSeconds <= 0 {
		return nil
	}
	return setKeepAliveInterval(fd, periodSeconds)
}

// Read reads directly from fd, matching the plain read(2) call
// readMessageFromClient makes.
func Read(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

// Write writes directly to fd, matching the plain write(2) call
// writeToClient makes.
func Write(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}

// Close closes fd.
func Close(fd int) error {
	return unix.Close(fd)
}

// Listen creates a non-blocking IPv4 TCP listening socket bound to port on
// all interfaces, matching the bind/listen half of anet's helpers.
func Listen(port int, backlog int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// Accept accepts one pending connection on listenFd, matching anetTcpAccept.
// unix.EAGAIN is returned as-is so the caller's read
// handler can treat it as "no more connections this tick", matching the
// non-blocking accept loop an edge-triggered or level-triggered backend
// drives.
func Accept(listenFd int) (int, error) {
	fd, _, err := unix.Accept(listenFd)
	if err != nil {
		return -1, err
	}
	return fd, nil
}

// IsAgain reports whether err is the non-blocking "try again" errno, so
// callers can distinguish "no data/connection right now" from a real error.
func IsAgain(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}
