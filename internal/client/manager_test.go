package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/FX-HAO/pusher/internal/ae"
)

func TestManager_ReadHandlerDispatchesWhitespaceSplitArgv(t *testing.T) {
	mgr := newTestManager(t)
	a, b := newTestPair(t)
	c := newTestClient(t, mgr, a)

	var gotArgv [][]byte
	mgr.dispatch = func(c *Client, argv [][]byte) { gotArgv = argv }

	_, err := unix.Write(b, []byte("PING hello"))
	require.NoError(t, err)

	mgr.readHandler(mgr.loop, a, c, ae.Readable)

	require.Len(t, gotArgv, 2)
	assert.Equal(t, "PING", string(gotArgv[0]))
	assert.Equal(t, "hello", string(gotArgv[1]))
}

func TestManager_ReadHandlerFreesClientOnEOF(t *testing.T) {
	mgr := newTestManager(t)
	a, b := newTestPair(t)
	c := newTestClient(t, mgr, a)
	unix.Close(b)

	mgr.readHandler(mgr.loop, a, c, ae.Readable)

	assert.Equal(t, -1, c.fd)
	assert.Equal(t, 0, mgr.clients.Len())
}

func TestManager_HandlePendingWrites_DrainsQueuedClients(t *testing.T) {
	mgr := newTestManager(t)
	a, b := newTestPair(t)
	c := newTestClient(t, mgr, a)

	require.NoError(t, c.AddReplyString([]byte("+OK\r\n")))
	require.Equal(t, 1, mgr.pendingWrite.Len())

	processed := mgr.HandlePendingWrites()

	assert.Equal(t, 1, processed)
	assert.Equal(t, 0, mgr.pendingWrite.Len())
	assert.False(t, c.HasPendingReplies())

	buf := make([]byte, 16)
	n, err := unix.Read(b, buf)
	require.NoError(t, err)
	assert.Equal(t, "+OK\r\n", string(buf[:n]))
}

func TestManager_CronIdleScan_ClosesOnlyIdleClients(t *testing.T) {
	mgr := newTestManager(t)

	freshFD, _ := newTestPair(t)
	fresh := newTestClient(t, mgr, freshFD)
	fresh.lastInteraction = time.Now()

	idleFD, _ := newTestPair(t)
	idle := newTestClient(t, mgr, idleFD)
	idle.lastInteraction = time.Now().Add(-time.Hour)

	closed := mgr.CronIdleScan(time.Now(), 10, time.Minute)

	assert.Equal(t, 1, closed)
	assert.Equal(t, -1, idle.fd)
	assert.NotEqual(t, -1, fresh.fd)
}

func TestManager_CronIdleScan_DisabledWhenTimeoutZero(t *testing.T) {
	mgr := newTestManager(t)
	fd, _ := newTestPair(t)
	c := newTestClient(t, mgr, fd)
	c.lastInteraction = time.Now().Add(-24 * time.Hour)

	closed := mgr.CronIdleScan(time.Now(), 10, 0)

	assert.Equal(t, 0, closed)
	assert.NotEqual(t, -1, c.fd)
}

func TestManager_Count(t *testing.T) {
	mgr := newTestManager(t)
	assert.Equal(t, 0, mgr.Count())
	fd, _ := newTestPair(t)
	newTestClient(t, mgr, fd)
	assert.Equal(t, 1, mgr.Count())
}
