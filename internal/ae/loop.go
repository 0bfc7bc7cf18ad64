package ae

import (
	"sync/atomic"
	"time"
)

// FileProc handles a ready file descriptor. mask reports which of the
// conditions the handler registered for actually fired.
type FileProc func(loop *Loop, fd int, clientData any, mask FileMask)

// SleepProc runs once per ProcessEvents tick, either just before the
// backend poll blocks (BeforeSleep) or just after it returns
// (AfterSleep), mirroring aeBeforeSleepProc.
type SleepProc func(loop *Loop)

type fileEvent struct {
	mask       FileMask
	rproc      FileProc
	wproc      FileProc
	clientData any
	// shared records that rproc and wproc were installed by a single
	// CreateFileEvent call, i.e. they are the same handler registered for
	// both conditions. Go function values are not comparable, so this flag
	// stands in for ae.c's rfileProc == wfileProc pointer check in the
	// dual-dispatch guard.
	shared bool
}

// Loop is the single-threaded reactor: it owns one readiness Backend, the
// table of registered file events, and the unsorted time event list, and
// drives them from ProcessEvents/Main exactly as ae.c's aeEventLoop does.
// A Loop is not safe for concurrent use — by design, every file and time
// event handler, and every call into the Loop's public methods, is expected
// to run on the single goroutine that calls Main (or ProcessEvents in a
// loop). The sanctioned exceptions are Stop, Wake and WakeFD: any goroutine
// may call them (or write to the wake descriptor) to interrupt a blocked poll.
type Loop struct {
	backend Backend
	setsize int
	maxfd   int
	events  []fileEvent
	fired   []FiredEvent

	timers timerList

	stop atomic.Bool

	beforeSleep SleepProc
	afterSleep  SleepProc

	wakeReadFd  int
	wakeWriteFd int
	wakeHook    SleepProc

	Metrics Metrics
}

// NewLoop creates a reactor sized to hold setsize simultaneously registered
// file descriptors, matching aeCreateEventLoop. It also creates and
// registers the wake descriptor (see wakeup_linux.go/wakeup_darwin.go) used
// to let other goroutines — chiefly the worker pool delivering completions —
// interrupt a blocked Poll.
func NewLoop(setsize int) (*Loop, error) {
	backend, err := newBackend(setsize)
	if err != nil {
		return nil, err
	}
	l := &Loop{
		backend: backend,
		setsize: setsize,
		maxfd:   -1,
		events:  make([]fileEvent, setsize),
		fired:   make([]FiredEvent, 0, 256),
	}
	l.timers.lastNow = time.Now()

	readFd, writeFd, err := newWakeFD()
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	l.wakeReadFd, l.wakeWriteFd = readFd, writeFd
	if err := l.CreateFileEvent(readFd, Readable, func(loop *Loop, fd int, _ any, _ FileMask) {
		wakeFDDrain(fd)
		if loop.wakeHook != nil {
			loop.wakeHook(loop)
		}
	}, nil); err != nil {
		closeWakeFD(readFd, writeFd)
		_ = backend.Close()
		return nil, err
	}
	return l, nil
}

// Close tears down the backend and the wake descriptor, matching
// aeDeleteEventLoop.
func (l *Loop) Close() error {
	closeWakeFD(l.wakeReadFd, l.wakeWriteFd)
	return l.backend.Close()
}

// Stop requests that Main return after completing its current tick. Like
// Wake, and unlike the other Loop methods, Stop is safe to call from any
// goroutine — it is
// the mechanism a signal handler goroutine uses to request shutdown — and
// it also wakes a currently-blocked Poll so the request is observed
// immediately rather than at the next scheduled timer.
func (l *Loop) Stop() {
	l.stop.Store(true)
	_ = l.Wake()
}

// WakeFD returns the descriptor any goroutine may write a single byte to in
// order to interrupt a blocked Poll call — the channel the worker pool uses
// to signal that a completion is waiting in its queue.
func (l *Loop) WakeFD() int {
	return l.wakeWriteFd
}

// Wake interrupts a blocked Poll from another goroutine.
func (l *Loop) Wake() error {
	return wakeFDSignal(l.wakeWriteFd)
}

// SetWakeHook installs fn to run on the reactor goroutine immediately after
// every drain of the wake descriptor, i.e. after any goroutine calls Wake.
// This is the sanctioned channel for a worker pool (or any other background
// goroutine) to have the reactor pick up state it produced concurrently: the
// pool pushes completions onto its own mutex-guarded queue, calls Wake, and
// this hook (set to the pool's drain method) resolves them on the reactor
// goroutine, preserving the single-handler-at-a-time invariant.
func (l *Loop) SetWakeHook(fn SleepProc) { l.wakeHook = fn }

// CreateFileEvent registers proc to run when fd becomes ready per mask,
// merging with fd's existing registration (so a Readable and a Writable
// interest can be registered independently and both delivered), matching
// aeCreateFileEvent.
func (l *Loop) CreateFileEvent(fd int, mask FileMask, proc FileProc, clientData any) error {
	if fd < 0 || fd >= l.setsize {
		return ErrFDOutOfRange
	}
	fe := &l.events[fd]
	merged := fe.mask | mask
	if err := l.backend.Add(fd, merged); err != nil {
		return err
	}
	fe.mask = merged
	if mask&Readable != 0 {
		fe.rproc = proc
	}
	if mask&Writable != 0 {
		fe.wproc = proc
	}
	fe.shared = mask&Readable != 0 && mask&Writable != 0
	fe.clientData = clientData
	if fd > l.maxfd {
		l.maxfd = fd
	}
	return nil
}

// DeleteFileEvent removes the given interest bits from fd, matching
// aeDeleteFileEvent, including the maxfd-shrinking scan.
func (l *Loop) DeleteFileEvent(fd int, mask FileMask) {
	if fd < 0 || fd > l.maxfd {
		return
	}
	fe := &l.events[fd]
	if fe.mask == None {
		return
	}
	_ = l.backend.Del(fd, mask)
	fe.mask &^= mask
	if mask&Readable != 0 {
		fe.rproc = nil
		fe.shared = false
	}
	if mask&Writable != 0 {
		fe.wproc = nil
		fe.shared = false
	}
	if fd == l.maxfd && fe.mask == None {
		i := l.maxfd - 1
		for ; i >= 0; i-- {
			if l.events[i].mask != None {
				break
			}
		}
		l.maxfd = i
	}
}

// GetFileEvents reports fd's current registered interest mask.
func (l *Loop) GetFileEvents(fd int) FileMask {
	if fd < 0 || fd > l.maxfd {
		return None
	}
	return l.events[fd].mask
}

// CreateTimeEvent schedules proc to run after delayMs, returning the new
// event's id.
func (l *Loop) CreateTimeEvent(delayMs int64, proc TimeProc, data any, fin FinalizerProc) uint64 {
	return l.timers.create(delayMs, proc, data, fin, time.Now())
}

// DeleteTimeEvent tombstones the time event with the given id.
func (l *Loop) DeleteTimeEvent(id uint64) bool {
	return l.timers.delete(id)
}

// SetBeforeSleep installs the hook run once per tick, immediately before the
// backend poll call (which may block).
func (l *Loop) SetBeforeSleep(fn SleepProc) { l.beforeSleep = fn }

// SetAfterSleep installs the hook run once per tick, immediately after the
// backend poll call returns.
func (l *Loop) SetAfterSleep(fn SleepProc) { l.afterSleep = fn }

// GetSetSize reports the loop's current fd table capacity.
func (l *Loop) GetSetSize() int { return l.setsize }

// ResizeSetSize grows or shrinks the loop's fd table capacity. Shrinking
// below a currently-registered fd is rejected, matching aeResizeSetSize.
func (l *Loop) ResizeSetSize(setsize int) error {
	if setsize == l.setsize {
		return nil
	}
	if l.maxfd >= setsize {
		return ErrSetSizeTooSmall
	}
	if err := l.backend.Resize(setsize); err != nil {
		return err
	}
	grown := make([]fileEvent, setsize)
	copy(grown, l.events)
	l.events = grown
	l.setsize = setsize
	return nil
}

// APIName reports the linked backend's name ("epoll" or "kqueue").
func (l *Loop) APIName() string { return l.backend.Name() }

// ProcessEvents runs a single tick: it optionally blocks in the backend poll
// (sized to the nearest time event deadline, unless DontWait is set or there
// are no registered fds and no time events requested), calls AfterSleep when
// CallAfterSleep is set, dispatches any fired file events, and then processes
// due time events. It returns the number of fired descriptors the poll
// reported plus time-event firings, matching aeProcessEvents's accounting.
func (l *Loop) ProcessEvents(flags ProcessFlags) int {
	if flags&(TimeEvents|FileEvents) == 0 {
		return 0
	}

	processed := 0

	if l.maxfd != -1 || (flags&TimeEvents != 0 && flags&DontWait == 0) {
		timeoutMs := -1
		if flags&DontWait != 0 {
			timeoutMs = 0
		} else if flags&TimeEvents != 0 {
			if nearest := l.timers.nearest(); nearest != nil {
				d := time.Until(nearest.when)
				if d < 0 {
					d = 0
				}
				timeoutMs = int(d.Milliseconds())
			}
		}

		if l.beforeSleep != nil {
			l.beforeSleep(l)
		}

		pollStart := time.Now()
		l.fired = l.fired[:0]
		fired, err := l.backend.Poll(l.fired, timeoutMs)
		if err == nil {
			l.fired = fired
		}
		pollLatency := time.Since(pollStart)

		if flags&CallAfterSleep != 0 && l.afterSleep != nil {
			l.afterSleep(l)
		}

		for _, ev := range l.fired {
			if ev.Fd < 0 || ev.Fd >= l.setsize {
				continue
			}
			fe := &l.events[ev.Fd]
			fired := 0
			if fe.mask&ev.Mask&Readable != 0 && fe.rproc != nil {
				fe.rproc(l, ev.Fd, fe.clientData, ev.Mask)
				fired++
			}
			// A handler may have deregistered the fd (e.g. closed the
			// connection) in response to the read; re-check the slot mask
			// before firing the write side.
			if fe.mask&ev.Mask&Writable != 0 && fe.wproc != nil &&
				(fired == 0 || !fe.shared) {
				fe.wproc(l, ev.Fd, fe.clientData, ev.Mask)
				fired++
			}
		}
		processed += len(l.fired)
		timersFired := 0
		if flags&TimeEvents != 0 {
			timersFired = l.timers.process(l, time.Now())
			processed += timersFired
		}
		l.Metrics.recordTick(pollLatency, len(l.fired), timersFired)
		return processed
	}

	if flags&TimeEvents != 0 {
		processed += l.timers.process(l, time.Now())
	}

	return processed
}

// Main runs ProcessEvents in a loop, with AllEvents|CallAfterSleep, until
// Stop is called, matching aeMain.
func (l *Loop) Main() {
	l.stop.Store(false)
	for !l.stop.Load() {
		l.ProcessEvents(AllEvents | CallAfterSleep)
	}
}

// Wait blocks up to timeoutMs for fd to become ready per mask, independent
// of any Loop instance, matching aeWait's use of plain poll(2). Nothing in
// this repository calls it from within a reactor tick.
func Wait(fd int, mask FileMask, timeoutMs int64) (FileMask, error) {
	return wait(fd, mask, timeoutMs)
}
