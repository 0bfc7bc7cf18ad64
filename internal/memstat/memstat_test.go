package memstat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdd_TracksRelativeDelta(t *testing.T) {
	before := UsedMemory()
	Add(100)
	Add(-40)
	assert.Equal(t, before+60, UsedMemory())
	Add(-60)
}

func TestSetOOMHandler_InvokedByFail(t *testing.T) {
	defer SetOOMHandler(nil)

	var gotRequested int64
	called := false
	SetOOMHandler(func(requested int64) {
		called = true
		gotRequested = requested
	})

	Fail(4096)

	assert.True(t, called)
	assert.Equal(t, int64(4096), gotRequested)
}

func TestSetOOMHandler_NilRestoresDefault(t *testing.T) {
	SetOOMHandler(func(int64) {})
	SetOOMHandler(nil)
	// no direct way to observe the default handler without exiting the
	// process; this only asserts SetOOMHandler(nil) doesn't panic and
	// leaves a callable handler installed.
	assert.NotPanics(t, func() { oomHandler.Load() })
}
