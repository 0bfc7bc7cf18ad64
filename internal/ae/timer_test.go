package ae

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerList_NearestPicksSoonestLiveEvent(t *testing.T) {
	var tl timerList
	now := time.Now()
	tl.lastNow = now

	tl.create(1000, func(*Loop, uint64, any) int64 { return NoMore }, nil, nil, now)
	soonID := tl.create(10, func(*Loop, uint64, any) int64 { return NoMore }, nil, nil, now)
	tl.create(500, func(*Loop, uint64, any) int64 { return NoMore }, nil, nil, now)

	nearest := tl.nearest()
	require.NotNil(t, nearest)
	assert.Equal(t, soonID, nearest.id)
}

func TestTimerList_NearestSkipsDeleted(t *testing.T) {
	var tl timerList
	now := time.Now()
	tl.lastNow = now

	soonID := tl.create(10, func(*Loop, uint64, any) int64 { return NoMore }, nil, nil, now)
	tl.create(500, func(*Loop, uint64, any) int64 { return NoMore }, nil, nil, now)

	require.True(t, tl.delete(soonID))

	nearest := tl.nearest()
	require.NotNil(t, nearest)
	assert.NotEqual(t, soonID, nearest.id)
}

func TestTimerList_ClockSkewForcesImmediateFire(t *testing.T) {
	var tl timerList
	now := time.Now()
	tl.lastNow = now

	fired := false
	tl.create(10_000, func(*Loop, uint64, any) int64 {
		fired = true
		return NoMore
	}, nil, nil, now)

	// Simulate the wall clock stepping backwards relative to lastNow.
	processed := tl.process(nil, now.Add(-time.Hour))

	assert.Equal(t, 1, processed)
	assert.True(t, fired)
}

func TestTimerList_DeleteUnknownIDReturnsFalse(t *testing.T) {
	var tl timerList
	assert.False(t, tl.delete(999))
}
