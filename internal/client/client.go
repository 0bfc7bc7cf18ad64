// Package client implements the connected-client I/O state machine: the
// two-tier output buffer (inline fixed buffer + overflow queue), the
// deferred-write ("pre-poll flush") optimization, and non-blocking
// read/parse, all grounded on networking.c and server.h's client struct.
package client

import (
	"fmt"
	"strconv"
	"time"

	"github.com/FX-HAO/pusher/internal/ae"
	"github.com/FX-HAO/pusher/internal/list"
	"github.com/FX-HAO/pusher/internal/memstat"
	"github.com/FX-HAO/pusher/internal/netutil"
)

// Flags is the client state bitmask.
type Flags int

const (
	// FlagNone is the zero value: no flags set.
	FlagNone Flags = 0
	// FlagPendingWrite marks a client as already linked into the manager's
	// pending-write list this tick, matching CLIENT_PENDING_WRITE.
	FlagPendingWrite Flags = 1 << iota
)

// Client is one connected client, matching the client struct in server.h.
// A Client is only ever touched from the reactor goroutine, so nothing in
// this package takes a lock.
type Client struct {
	mgr *Manager

	id  uint64
	fd  int

	argv [][]byte

	reply      list.List[[]byte]
	replyBytes int

	buf     []byte
	bufpos  int
	sentlen int

	ctime           time.Time
	lastInteraction time.Time

	flags Flags

	node        *list.Node[*Client] // back-pointer into Manager.clients
	pendingNode *list.Node[*Client] // back-pointer into Manager.pendingWrite

	onClose func(*Client)
}

// SetOnClose installs fn to run once, at the start of Unlink, before any
// list/file-event teardown happens. It is the hook collaborators outside
// this package (e.g. internal/pubsub's channel registry) use to drop their
// own back-references to a closing client; this package has no knowledge of
// pubsub.
func (c *Client) SetOnClose(fn func(*Client)) { c.onClose = fn }

// ID returns the client's monotonic, process-lifetime-unique id.
func (c *Client) ID() uint64 { return c.id }

// Fd returns the client's socket descriptor, or -1 once detached/closed.
func (c *Client) Fd() int { return c.fd }

// Argv returns the most recently dispatched request's whitespace-split
// arguments. Valid only for the duration of the dispatch call the read
// handler makes; commands that need to retain bytes must copy them.
func (c *Client) Argv() [][]byte { return c.argv }

// LastInteraction reports the wall-clock time of the client's last read or
// successful write, the value the idle-timeout cron compares against.
func (c *Client) LastInteraction() time.Time { return c.lastInteraction }

// CreatedAt reports the client's creation time, matching client.ctime.
func (c *Client) CreatedAt() time.Time { return c.ctime }

// HasPendingReplies reports whether the client has any buffered output not
// yet written to the socket, matching clientHasPendingReplies.
func (c *Client) HasPendingReplies() bool {
	return c.bufpos > 0 || c.reply.Len() > 0
}

// PrepareToWrite must be called before appending to either output tier,
// matching prepareClientToWrite. It links the client into the manager's
// pending-write list (if not already linked) instead of installing a
// writable registration directly — the registration only happens if the
// pre-poll flush can't drain the whole reply synchronously.
func (c *Client) PrepareToWrite() error {
	if c.fd <= 0 {
		return ErrClientClosing
	}
	if !c.HasPendingReplies() && c.flags&FlagPendingWrite == 0 {
		c.flags |= FlagPendingWrite
		c.pendingNode = c.mgr.pendingWrite.PushFront(c)
	}
	return nil
}

// AddReplyString appends b to the client's output, trying the inline buffer
// first and spilling into a new overflow chunk only if b doesn't fit,
// matching addReplyString's _addReplyToBuffer/_addReplyStringToList split.
func (c *Client) AddReplyString(b []byte) error {
	if err := c.PrepareToWrite(); err != nil {
		return err
	}
	c.appendReply(b)
	return nil
}

// AddReplySDS is an alias for AddReplyString, kept as a distinct method to
// mirror addReplySds (which took ownership of its sds argument; Go has no
// such ownership transfer, so the two are identical here).
func (c *Client) AddReplySDS(b []byte) error {
	return c.AddReplyString(b)
}

func (c *Client) appendReply(b []byte) {
	if len(b) <= len(c.buf)-c.bufpos {
		copy(c.buf[c.bufpos:], b)
		c.bufpos += len(b)
		return
	}
	chunk := make([]byte, len(b))
	copy(chunk, b)
	c.reply.PushBack(chunk)
	c.replyBytes += len(chunk)
	memstat.Add(int64(len(chunk)))
}

// AddReplyLongLong appends ":<decimal>\r\n", matching
// addReplyLongLongWithPrefix(c, ll, ':').
func (c *Client) AddReplyLongLong(n int64) error {
	b := make([]byte, 0, 22)
	b = append(b, ':')
	b = strconv.AppendInt(b, n, 10)
	b = append(b, '\r', '\n')
	return c.AddReplyString(b)
}

// AddReplyError appends "-<msg>\r\n", matching addReplyError.
func (c *Client) AddReplyError(msg string) error {
	b := make([]byte, 0, len(msg)+3)
	b = append(b, '-')
	b = append(b, msg...)
	b = append(b, '\r', '\n')
	return c.AddReplyString(b)
}

// AddReplyErrorFormat is AddReplyError with printf-style formatting,
// matching addReplyErrorFormat.
func (c *Client) AddReplyErrorFormat(format string, args ...any) error {
	return c.AddReplyError(fmt.Sprintf(format, args...))
}

// WriteToClient is the drain loop: while the client has pending data, issue
// one write(2) of whichever tier currently holds the head of the reply,
// matching writeToClient. handlerInstalled tells it whether a writable file
// event is currently registered, so a full drain knows whether to
// deregister it (handlerInstalled=true from the writable-event path,
// false from the pre-poll synchronous flush).
func (c *Client) WriteToClient(handlerInstalled bool) error {
	var nwritten int
	var werr error
	totwritten := 0

	for c.HasPendingReplies() {
		if c.bufpos > 0 {
			nwritten, werr = netutil.Write(c.fd, c.buf[c.sentlen:c.bufpos])
			if nwritten <= 0 {
				break
			}
			c.sentlen += nwritten
			totwritten += nwritten
			if c.sentlen == c.bufpos {
				c.bufpos, c.sentlen = 0, 0
			}
			continue
		}

		node := c.reply.Front()
		head := node.Value
		if len(head) == 0 {
			c.reply.Remove(node)
			continue
		}
		nwritten, werr = netutil.Write(c.fd, head[c.sentlen:])
		if nwritten <= 0 {
			break
		}
		c.sentlen += nwritten
		totwritten += nwritten
		if c.sentlen == len(head) {
			c.reply.Remove(node)
			c.replyBytes -= len(head)
			memstat.Add(-int64(len(head)))
			c.sentlen = 0
		}
	}

	if nwritten < 0 {
		if netutil.IsAgain(werr) {
			nwritten = 0
		} else {
			c.mgr.log.Verbose("error writing to client id=%d: %v", c.id, werr)
			c.Free()
			return werr
		}
	}

	if totwritten > 0 {
		c.lastInteraction = time.Now()
	}

	if !c.HasPendingReplies() {
		c.sentlen = 0
		if handlerInstalled {
			c.mgr.loop.DeleteFileEvent(c.fd, ae.Writable)
		}
	}

	return nil
}

// Unlink removes the client from the manager's client and pending-write
// lists, deregisters both its file events, and closes its socket, matching
// unlinkClient. It is a no-op on an already-detached client (fd == -1).
func (c *Client) Unlink() {
	if c.fd == -1 {
		return
	}
	if c.onClose != nil {
		c.onClose(c)
	}
	if c.node != nil {
		c.mgr.clients.Remove(c.node)
		c.node = nil
	}
	if c.pendingNode != nil {
		c.mgr.pendingWrite.Remove(c.pendingNode)
		c.pendingNode = nil
		c.flags &^= FlagPendingWrite
	}
	c.mgr.loop.DeleteFileEvent(c.fd, ae.Readable)
	c.mgr.loop.DeleteFileEvent(c.fd, ae.Writable)
	netutil.Close(c.fd)
	c.fd = -1
}

// Free tears down the client, matching freeClient (unlinkClient plus
// releasing memory — Go's GC handles the latter once nothing references c).
func (c *Client) Free() {
	c.Unlink()
}
