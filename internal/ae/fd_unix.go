//go:build linux || darwin

package ae

import (
	"golang.org/x/sys/unix"
)

// wait blocks up to timeoutMs (negative means forever) for fd to satisfy
// mask via plain poll(2), matching aeWait. It folds POLLERR/POLLHUP into
// Writable the same way the backends do.
func wait(fd int, mask FileMask, timeoutMs int64) (FileMask, error) {
	var events int16
	if mask&Readable != 0 {
		events |= unix.POLLIN
	}
	if mask&Writable != 0 {
		events |= unix.POLLOUT
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	if _, err := unix.Poll(fds, int(timeoutMs)); err != nil {
		return None, err
	}
	var ret FileMask
	if fds[0].Revents&unix.POLLIN != 0 {
		ret |= Readable
	}
	if fds[0].Revents&unix.POLLOUT != 0 {
		ret |= Writable
	}
	if fds[0].Revents&(unix.POLLERR|unix.POLLHUP) != 0 {
		ret |= Writable
	}
	return ret, nil
}
