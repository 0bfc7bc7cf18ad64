// Package ae implements the event-driven I/O substrate the rest of the
// server is built on: a single-threaded reactor that multiplexes file
// descriptor readiness and schedules time events, on top of a thin,
// platform-specific readiness backend (epoll on Linux, kqueue on
// Darwin/BSD).
package ae

import "errors"

// FileMask describes the set of I/O conditions a file event is interested
// in, or that a poll reported as ready.
type FileMask int

const (
	// None indicates no interest / no readiness.
	None FileMask = 0

	// Readable indicates the descriptor is ready for reading.
	Readable FileMask = 1 << (iota - 1)
	// Writable indicates the descriptor is ready for writing. Error and
	// hangup conditions are folded into Writable by the backend, so a
	// handler observes them on its next write attempt.
	Writable
)

// ProcessFlags controls which kinds of events a single Loop.ProcessEvents
// tick considers, and whether it may block.
type ProcessFlags int

const (
	FileEvents     ProcessFlags = 1 << iota // consider file events
	TimeEvents                              // consider time events
	DontWait                                // never block in the backend poll
	CallAfterSleep                          // invoke the AfterSleep hook

	AllEvents = FileEvents | TimeEvents
)

// NoMore is the sentinel a TimeProc returns to have its event tombstoned
// instead of rescheduled.
const NoMore = -1

// Standard errors returned by Loop operations. All Loop methods that can
// fail return a plain error; there is no partial-registration state left
// behind on failure.
var (
	ErrFDOutOfRange    = errors.New("ae: fd out of range for this loop's setsize")
	ErrSetSizeTooSmall = errors.New("ae: resize would drop a registered fd")
	ErrClosed          = errors.New("ae: loop is closed")
)

// FiredEvent is one readiness notification returned by a backend Poll call.
type FiredEvent struct {
	Fd   int
	Mask FileMask
}

// Backend is the narrow capability set a readiness multiplexer exposes to
// the reactor. A single backend implementation is linked into any given
// build (epoll on Linux, kqueue on Darwin/BSD); selection happens via Go
// build tags, not runtime configuration.
type Backend interface {
	// Add is a state-replacing upsert: after Add(fd, mask) returns nil, the
	// backend's registration for fd exactly reflects mask. The caller (the
	// Loop) is responsible for computing the merged mask; Add never merges
	// with a prior call itself.
	Add(fd int, mask FileMask) error
	// Del removes the given mask bits from fd's registration. When the
	// resulting mask is empty the fd is deregistered entirely.
	Del(fd int, mask FileMask) error
	// Poll blocks for up to timeoutMs milliseconds (a negative value means
	// block forever, zero means do not block), appending ready descriptors
	// to dst, and returns the (possibly grown) slice.
	Poll(dst []FiredEvent, timeoutMs int) ([]FiredEvent, error)
	// Resize grows the backend's internal capacity to setsize.
	Resize(setsize int) error
	// Close releases the backend's resources.
	Close() error
	// Name returns a short identifying string ("epoll", "kqueue"), for
	// observability only.
	Name() string
}
