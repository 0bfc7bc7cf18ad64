//go:build darwin

package ae

import (
	"syscall"
)

// newWakeFD creates the reactor's self-wake descriptor on Darwin/BSD: a
// non-blocking pipe, since kqueue has no direct eventfd equivalent. The
// write end absorbs the worker pool's completion notifications; the
// reactor registers the read end as an ordinary Readable file event.
func newWakeFD() (readFd, writeFd int, err error) {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		return -1, -1, err
	}
	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])
	if err := syscall.SetNonblock(fds[0], true); err != nil {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
		return -1, -1, err
	}
	if err := syscall.SetNonblock(fds[1], true); err != nil {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

func wakeFDSignal(writeFd int) error {
	_, err := syscall.Write(writeFd, []byte{1})
	return err
}

func wakeFDDrain(readFd int) {
	var buf [64]byte
	for {
		if _, err := syscall.Read(readFd, buf[:]); err != nil {
			return
		}
	}
}

func closeWakeFD(readFd, writeFd int) {
	_ = syscall.Close(readFd)
	if writeFd != readFd {
		_ = syscall.Close(writeFd)
	}
}
