package ae

import "time"

// TimeProc is invoked when a time event fires. Returning NoMore tombstones
// the event instead of rescheduling it; any other return value is the delay,
// in milliseconds, until the next firing.
type TimeProc func(loop *Loop, id uint64, data any) int64

// FinalizerProc runs once, when a time event is actually unlinked from the
// list (after being tombstoned), giving the owner a chance to release data.
type FinalizerProc func(loop *Loop, data any)

// timeEvent mirrors aeTimeEvent: an unsorted doubly-linked list node.
// Deletion is two-phase. DeleteTimeEvent only tombstones the id; the next
// process pass unlinks and finalizes it. A handler may delete a timer while
// the sweep holding it is in progress, so unlinking eagerly is not safe.
type timeEvent struct {
	id        uint64
	deleted   bool
	when      time.Time
	proc      TimeProc
	finalizer FinalizerProc
	data      any
	prev, next *timeEvent
}

// timerList is the loop's time event collection: an unsorted doubly-linked
// list with an O(n) nearest-deadline scan, grounded on ae.c's
// aeSearchNearestTimer/processTimeEvents.
type timerList struct {
	head   *timeEvent
	nextID uint64
	lastNow time.Time
}

func (t *timerList) create(delayMs int64, proc TimeProc, data any, fin FinalizerProc, now time.Time) uint64 {
	id := t.nextID
	t.nextID++
	te := &timeEvent{
		id:        id,
		when:      now.Add(time.Duration(delayMs) * time.Millisecond),
		proc:      proc,
		finalizer: fin,
		data:      data,
		next:      t.head,
	}
	if te.next != nil {
		te.next.prev = te
	}
	t.head = te
	return id
}

// delete tombstones the event with the given id. It returns false if no
// live event with that id is found.
func (t *timerList) delete(id uint64) bool {
	for te := t.head; te != nil; te = te.next {
		if te.id == id && !te.deleted {
			te.deleted = true
			return true
		}
	}
	return false
}

// nearest scans the unsorted list for the soonest-firing live event, O(n)
// per call, used only to size the backend's poll timeout.
func (t *timerList) nearest() *timeEvent {
	var nearest *timeEvent
	for te := t.head; te != nil; te = te.next {
		if te.deleted {
			continue
		}
		if nearest == nil || te.when.Before(nearest.when) {
			nearest = te
		}
	}
	return nearest
}

// process fires every due event and unlinks every tombstoned one, returning
// the count of handlers actually invoked. now is the wall clock at call
// time; if it is behind the timer list's last recorded wall clock, every
// live event is forced to fire on this pass, matching ae.c's clock-skew
// handling for system clocks stepped backwards.
func (t *timerList) process(loop *Loop, now time.Time) int {
	if now.Before(t.lastNow) {
		for te := t.head; te != nil; te = te.next {
			if !te.deleted {
				te.when = now
			}
		}
	}
	t.lastNow = now

	processed := 0
	te := t.head
	for te != nil {
		next := te.next
		if te.deleted {
			t.unlink(te)
			if te.finalizer != nil {
				te.finalizer(loop, te.data)
			}
			te = next
			continue
		}
		if !now.Before(te.when) {
			retval := te.proc(loop, te.id, te.data)
			if retval == NoMore {
				te.deleted = true
			} else {
				te.when = now.Add(time.Duration(retval) * time.Millisecond)
			}
			processed++
		}
		te = next
	}
	return processed
}

func (t *timerList) unlink(te *timeEvent) {
	if te.prev != nil {
		te.prev.next = te.next
	} else {
		t.head = te.next
	}
	if te.next != nil {
		te.next.prev = te.prev
	}
	te.prev, te.next = nil, nil
}
