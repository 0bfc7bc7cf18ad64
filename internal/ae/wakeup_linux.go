//go:build linux

package ae

import (
	"golang.org/x/sys/unix"
)

// newWakeFD creates the reactor's self-wake descriptor on Linux: a single
// eventfd serves as both read and write end. The worker pool (or any other
// goroutine needing to nudge the reactor out of a blocking Poll) writes an
// 8-byte counter increment to it; the reactor registers it as an ordinary
// Readable file event and drains it in its handler.
func newWakeFD() (readFd, writeFd int, err error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, -1, err
	}
	return fd, fd, nil
}

// wakeFDSignal writes to the wake descriptor, waking a blocked Poll call.
func wakeFDSignal(writeFd int) error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(writeFd, buf[:])
	return err
}

// wakeFDDrain reads and discards all pending wake-ups on readFd.
func wakeFDDrain(readFd int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(readFd, buf[:]); err != nil {
			return
		}
	}
}

func closeWakeFD(readFd, writeFd int) {
	_ = unix.Close(readFd)
	if writeFd != readFd {
		_ = unix.Close(writeFd)
	}
}
