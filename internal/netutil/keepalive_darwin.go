//go:build darwin

package netutil

import "golang.org/x/sys/unix"

// setKeepAliveInterval sets the Darwin-specific idle tunable for TCP
// keepalive; BSD/Darwin exposes the idle timer as TCP_KEEPALIVE rather than
// Linux's TCP_KEEPIDLE.
func setKeepAliveInterval(fd int, periodSeconds int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPALIVE, periodSeconds)
}
