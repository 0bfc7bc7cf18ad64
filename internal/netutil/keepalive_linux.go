//go:build linux

package netutil

import "golang.org/x/sys/unix"

// setKeepAliveInterval sets the Linux-specific idle and probe-interval
// tunables for TCP keepalive.
func setKeepAliveInterval(fd int, periodSeconds int) error {
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, periodSeconds); err != nil {
		return err
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, periodSeconds)
}
