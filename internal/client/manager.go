package client

import (
	"bytes"
	"sync/atomic"
	"time"

	"github.com/FX-HAO/pusher/internal/ae"
	"github.com/FX-HAO/pusher/internal/list"
	"github.com/FX-HAO/pusher/internal/logx"
	"github.com/FX-HAO/pusher/internal/netutil"
)

// clientsCronMinIterations bounds the idle-scan rotation to at least this
// many clients per tick even when num_clients/hz rounds to zero, matching
// CLIENTS_CRON_MIN_ITERATIONS.
const clientsCronMinIterations = 5

// readBufferBytes is the size of the one-shot, non-blocking read the read
// handler issues per invocation, matching READ_MESSAGE_LENGTH.
const readBufferBytes = 16 * 1024

// Dispatch is invoked once per request read off a client's socket, with the
// whitespace-split argv. The command table lives behind it, external to this
// package.
type Dispatch func(c *Client, argv [][]byte)

// Manager owns the server-wide client list and pending-write list, and is
// the factory for Client values, matching the parts of struct server that
// concern networking.c/server.h's client engine.
type Manager struct {
	loop          *ae.Loop
	dispatch      Dispatch
	log           *logx.Logger
	inlineBufSize int
	tcpKeepAlive  time.Duration

	nextID atomic.Uint64

	clients      list.List[*Client]
	pendingWrite list.List[*Client]

	onClose func(*Client)
}

// SetOnClose installs fn to run on every client this Manager creates, at the
// start of that client's Unlink (see Client.SetOnClose). Call it before any
// CreateClient call whose clients need the hook.
func (m *Manager) SetOnClose(fn func(*Client)) { m.onClose = fn }

// NewManager builds a Manager bound to loop. inlineBufSize sizes each
// client's Tier-1 buffer (PROTO_BUFFER_BYTES); tcpKeepAlive of zero disables
// SO_KEEPALIVE tuning.
func NewManager(loop *ae.Loop, dispatch Dispatch, log *logx.Logger, inlineBufSize int, tcpKeepAlive time.Duration) *Manager {
	return &Manager{
		loop:          loop,
		dispatch:      dispatch,
		log:           log,
		inlineBufSize: inlineBufSize,
		tcpKeepAlive:  tcpKeepAlive,
	}
}

// Count reports the number of currently-linked clients.
func (m *Manager) Count() int { return m.clients.Len() }

// CreateClient allocates a Client, matching createClient. Passing fd == -1
// creates a detached client used for internal purposes (e.g. running a
// command offline) with no socket registration and no client-list linkage.
func (m *Manager) CreateClient(fd int) (*Client, error) {
	c := &Client{
		buf:             make([]byte, m.inlineBufSize),
		ctime:           time.Now(),
		lastInteraction: time.Now(),
		mgr:             m,
		onClose:         m.onClose,
	}

	if fd != -1 {
		if err := netutil.SetNonblocking(fd); err != nil {
			return nil, err
		}
		if err := netutil.SetNoDelay(fd); err != nil {
			return nil, err
		}
		if m.tcpKeepAlive > 0 {
			if err := netutil.SetKeepAlive(fd, int(m.tcpKeepAlive/time.Second)); err != nil {
				return nil, err
			}
		}
		if err := m.loop.CreateFileEvent(fd, ae.Readable, m.readHandler, c); err != nil {
			netutil.Close(fd)
			return nil, err
		}
	}

	c.id = m.nextID.Add(1)
	c.fd = fd
	if fd != -1 {
		c.node = m.clients.PushBack(c)
	}
	return c, nil
}

func (m *Manager) readHandler(loop *ae.Loop, fd int, clientData any, mask ae.FileMask) {
	c := clientData.(*Client)
	buf := make([]byte, readBufferBytes)
	n, err := netutil.Read(fd, buf)
	if n <= 0 {
		if err != nil && netutil.IsAgain(err) {
			return
		}
		c.Free()
		return
	}
	c.lastInteraction = time.Now()

	argv := bytes.Fields(buf[:n])
	if len(argv) == 0 {
		return
	}
	c.argv = argv
	m.dispatch(c, argv)
	c.argv = nil
}

func (m *Manager) writeHandler(loop *ae.Loop, fd int, clientData any, mask ae.FileMask) {
	c := clientData.(*Client)
	_ = c.WriteToClient(true)
}

// BeforeSleep is the reactor's before_sleep hook, matching
// handleClientsWithPendingWrites: drain every client queued for output
// since the last tick, writing synchronously, and only installing a
// writable registration for whatever doesn't fit in one syscall.
func (m *Manager) BeforeSleep(loop *ae.Loop) {
	m.HandlePendingWrites()
}

// HandlePendingWrites is BeforeSleep's logic, split out so tests (and anything
// else driving the manager outside a real *ae.Loop before_sleep call) can
// observe the processed count directly, matching
// handleClientsWithPendingWrites's return value.
func (m *Manager) HandlePendingWrites() int {
	processed := m.pendingWrite.Len()

	n := m.pendingWrite.Front()
	for n != nil {
		next := n.Next()
		c := n.Value
		c.flags &^= FlagPendingWrite
		m.pendingWrite.Remove(n)
		c.pendingNode = nil

		if err := c.WriteToClient(false); err == nil && c.HasPendingReplies() {
			_ = m.loop.CreateFileEvent(c.fd, ae.Writable, m.writeHandler, c)
		}
		n = next
	}
	return processed
}

// CronIdleScan rotates the client list one step per iteration (tail to
// head) and frees whichever client now sits at the head if it has been idle
// longer than idleTimeout, matching closeTimedoutClients's
// CLIENTS_CRON_MIN_ITERATIONS-bounded, O(1)-per-client rotation scan.
// idleTimeout <= 0 disables the scan entirely.
func (m *Manager) CronIdleScan(now time.Time, hz int, idleTimeout time.Duration) int {
	if idleTimeout <= 0 || hz <= 0 {
		return 0
	}
	total := m.clients.Len()
	if total == 0 {
		return 0
	}
	iterations := total / hz
	if iterations < clientsCronMinIterations {
		iterations = clientsCronMinIterations
	}
	if iterations > total {
		iterations = total
	}

	closed := 0
	for i := 0; i < iterations; i++ {
		m.clients.Rotate()
		head := m.clients.Front()
		if head == nil {
			break
		}
		c := head.Value
		if now.Sub(c.lastInteraction) > idleTimeout {
			m.log.WarningThrottled("idle-client-timeout", "closing idle client id=%d fd=%d (idle %s)", c.id, c.fd, now.Sub(c.lastInteraction))
			c.Free()
			closed++
		}
	}
	return closed
}
