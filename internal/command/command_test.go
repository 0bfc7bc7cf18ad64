package command

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/FX-HAO/pusher/internal/ae"
	"github.com/FX-HAO/pusher/internal/client"
	"github.com/FX-HAO/pusher/internal/logx"
	"github.com/FX-HAO/pusher/internal/netutil"
	"github.com/FX-HAO/pusher/internal/pubsub"
)

// newLoopbackClient builds a real Client backed by a connected loopback TCP
// socket (so CreateClient's TCP-only socket options succeed), returning the
// client plus the peer fd the test reads replies from.
func newLoopbackClient(t *testing.T) (*client.Client, int) {
	t.Helper()

	listenFd, err := netutil.Listen(0, 1)
	require.NoError(t, err)
	t.Cleanup(func() { netutil.Close(listenFd) })

	sa, err := unix.Getsockname(listenFd)
	require.NoError(t, err)
	port := sa.(*unix.SockaddrInet4).Port

	peerFd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	require.NoError(t, err)
	t.Cleanup(func() { unix.Close(peerFd) })
	connErr := unix.Connect(peerFd, &unix.SockaddrInet4{Port: port, Addr: [4]byte{127, 0, 0, 1}})
	require.True(t, connErr == nil || connErr == unix.EINPROGRESS)
	require.NoError(t, unix.SetNonblock(peerFd, true))

	var serverFd int
	require.Eventually(t, func() bool {
		fd, err := netutil.Accept(listenFd)
		if err != nil {
			return false
		}
		serverFd = fd
		return true
	}, time.Second, time.Millisecond)
	t.Cleanup(func() { unix.Close(serverFd) })

	loop, err := ae.NewLoop(64)
	require.NoError(t, err)
	t.Cleanup(func() { loop.Close() })

	mgr := client.NewManager(loop, func(*client.Client, [][]byte) {}, logx.New(0, 0), 256, 0)
	c, err := mgr.CreateClient(serverFd)
	require.NoError(t, err)
	return c, peerFd
}

func readReply(t *testing.T, peerFd int, c *client.Client) string {
	t.Helper()
	require.NoError(t, c.WriteToClient(false))
	buf := make([]byte, 256)
	var n int
	// The peer is non-blocking and loopback delivery isn't instantaneous;
	// retry until the reply lands.
	require.Eventually(t, func() bool {
		got, err := unix.Read(peerFd, buf)
		if err != nil || got <= 0 {
			return false
		}
		n = got
		return true
	}, time.Second, time.Millisecond)
	return string(buf[:n])
}

func TestTable_Dispatch_UnknownCommand(t *testing.T) {
	hub := pubsub.NewHub()
	tbl := NewTable(hub)
	c, peer := newLoopbackClient(t)

	tbl.Dispatch(c, [][]byte{[]byte("NOPE")})

	assert.Equal(t, "-ERR unknown command 'NOPE'\r\n", readReply(t, peer, c))
}

func TestTable_Dispatch_ArityMismatch(t *testing.T) {
	hub := pubsub.NewHub()
	tbl := NewTable(hub)
	c, peer := newLoopbackClient(t)

	tbl.Dispatch(c, [][]byte{[]byte("ECHO")})

	assert.Equal(t, "-ERR wrong number of arguments for 'ECHO' command\r\n", readReply(t, peer, c))
	d, ok := tbl.Lookup("ECHO")
	require.True(t, ok)
	assert.Equal(t, uint64(1), d.Errors.Load())
	assert.Equal(t, uint64(0), d.Calls.Load())
}

func TestTable_Dispatch_PingNoArgs(t *testing.T) {
	hub := pubsub.NewHub()
	tbl := NewTable(hub)
	c, peer := newLoopbackClient(t)

	tbl.Dispatch(c, [][]byte{[]byte("ping")})

	assert.Equal(t, "+PONG\r\n", readReply(t, peer, c))
}

func TestTable_Dispatch_PingWithMessage(t *testing.T) {
	hub := pubsub.NewHub()
	tbl := NewTable(hub)
	c, peer := newLoopbackClient(t)

	tbl.Dispatch(c, [][]byte{[]byte("PING"), []byte("hi")})

	assert.Equal(t, "+hi\r\n", readReply(t, peer, c))
}

func TestTable_Dispatch_PingTooManyArgsIsArityError(t *testing.T) {
	hub := pubsub.NewHub()
	tbl := NewTable(hub)
	c, peer := newLoopbackClient(t)

	tbl.Dispatch(c, [][]byte{[]byte("PING"), []byte("a"), []byte("b")})

	assert.Equal(t, "-ERR wrong number of arguments for 'PING' command\r\n", readReply(t, peer, c))
}

func TestTable_Dispatch_PublishCountsSubscribers(t *testing.T) {
	hub := pubsub.NewHub()
	tbl := NewTable(hub)
	sub, subPeer := newLoopbackClient(t)
	hub.Subscribe("news", sub)

	pub, pubPeer := newLoopbackClient(t)
	tbl.Dispatch(pub, [][]byte{[]byte("PUBLISH"), []byte("news"), []byte("hello")})

	assert.Equal(t, ":1\r\n", readReply(t, pubPeer, pub))
	assert.Equal(t, "+hello\r\n", readReply(t, subPeer, sub))
}

func TestTable_Dispatch_CommandReportsRegisteredCount(t *testing.T) {
	hub := pubsub.NewHub()
	tbl := NewTable(hub)
	c, peer := newLoopbackClient(t)

	tbl.Dispatch(c, [][]byte{[]byte("COMMAND")})

	assert.Equal(t, ":"+strconv.Itoa(tbl.Len())+"\r\n", readReply(t, peer, c))
}
