package ae

import (
	"sync/atomic"
	"time"
)

// Metrics tracks low-overhead runtime counters for a Loop: how long each
// poll tick took, and how many file and time events it delivered. All fields are updated with plain
// atomics so a separate goroutine (e.g. an HTTP /debug endpoint) can read
// them without taking a lock on the reactor's hot path.
type Metrics struct {
	ticks       atomic.Uint64
	firedEvents atomic.Uint64
	timeEvents  atomic.Uint64
	lastPollNs  atomic.Int64
	totalPollNs atomic.Int64
}

// Snapshot is a point-in-time copy of Metrics, safe to pass around.
type Snapshot struct {
	Ticks           uint64
	FiredEvents     uint64
	TimeEventsFired uint64
	LastPollLatency time.Duration
	MeanPollLatency time.Duration
}

func (m *Metrics) recordTick(pollLatency time.Duration, fired, timersFired int) {
	m.ticks.Add(1)
	m.firedEvents.Add(uint64(fired))
	m.timeEvents.Add(uint64(timersFired))
	m.lastPollNs.Store(int64(pollLatency))
	m.totalPollNs.Add(int64(pollLatency))
}

// Snapshot returns a consistent-enough copy of the current counters. Reads
// of independent atomics are not a single transaction, so under heavy
// concurrent load the derived MeanPollLatency can be momentarily off by one
// tick's worth of denominator; that's an acceptable tradeoff for avoiding a
// mutex on the reactor's poll path.
func (m *Metrics) Snapshot() Snapshot {
	ticks := m.ticks.Load()
	var mean time.Duration
	if ticks > 0 {
		mean = time.Duration(m.totalPollNs.Load() / int64(ticks))
	}
	return Snapshot{
		Ticks:           ticks,
		FiredEvents:     m.firedEvents.Load(),
		TimeEventsFired: m.timeEvents.Load(),
		LastPollLatency: time.Duration(m.lastPollNs.Load()),
		MeanPollLatency: mean,
	}
}
