//go:build darwin

package ae

import (
	"golang.org/x/sys/unix"
)

// kqueueBackend is the Darwin/BSD Backend implementation, in the shape of
// Redis's ae_kqueue.c adapter. kqueue tracks read and write
// interest as independent filters, so Add/Del diff against the previously
// registered mask to decide which EVFILT_READ/EVFILT_WRITE kevents to add or
// delete, rather than replacing the whole registration in one call.
type kqueueBackend struct {
	kq       int
	masks    []FileMask
	eventBuf [256]unix.Kevent_t
}

func newBackend(setsize int) (Backend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &kqueueBackend{
		kq:    kq,
		masks: make([]FileMask, setsize),
	}, nil
}

func (b *kqueueBackend) Name() string { return "kqueue" }

func (b *kqueueBackend) Close() error {
	return unix.Close(b.kq)
}

func (b *kqueueBackend) Resize(setsize int) error {
	if setsize <= len(b.masks) {
		return nil
	}
	grown := make([]FileMask, setsize)
	copy(grown, b.masks)
	b.masks = grown
	return nil
}

func kevent(fd int, filter int16, flags uint16) unix.Kevent_t {
	return unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  flags,
	}
}

func (b *kqueueBackend) Add(fd int, mask FileMask) error {
	if fd < 0 || fd >= len(b.masks) {
		return ErrFDOutOfRange
	}
	prev := b.masks[fd]
	var changes []unix.Kevent_t

	if mask&Readable != 0 && prev&Readable == 0 {
		changes = append(changes, kevent(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE))
	} else if mask&Readable == 0 && prev&Readable != 0 {
		changes = append(changes, kevent(fd, unix.EVFILT_READ, unix.EV_DELETE))
	}
	if mask&Writable != 0 && prev&Writable == 0 {
		changes = append(changes, kevent(fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE))
	} else if mask&Writable == 0 && prev&Writable != 0 {
		changes = append(changes, kevent(fd, unix.EVFILT_WRITE, unix.EV_DELETE))
	}

	if len(changes) > 0 {
		if _, err := unix.Kevent(b.kq, changes, nil, nil); err != nil {
			return err
		}
	}
	b.masks[fd] = mask
	return nil
}

func (b *kqueueBackend) Del(fd int, mask FileMask) error {
	if fd < 0 || fd >= len(b.masks) {
		return ErrFDOutOfRange
	}
	remaining := b.masks[fd] &^ mask
	return b.Add(fd, remaining)
}

func (b *kqueueBackend) Poll(dst []FiredEvent, timeoutMs int) ([]FiredEvent, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1000000),
		}
	}

	n, err := unix.Kevent(b.kq, nil, b.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, err
	}

	for i := 0; i < n; i++ {
		kev := b.eventBuf[i]
		fd := int(kev.Ident)
		var mask FileMask
		switch kev.Filter {
		case unix.EVFILT_READ:
			mask |= Readable
		case unix.EVFILT_WRITE:
			mask |= Writable
		}
		// Fold error/EOF into writable, matching the epoll backend so the
		// reactor sees one uniform signal regardless of platform.
		if kev.Flags&(unix.EV_ERROR|unix.EV_EOF) != 0 {
			mask |= Writable
		}
		dst = append(dst, FiredEvent{Fd: fd, Mask: mask})
	}
	return dst, nil
}
