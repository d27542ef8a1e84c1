package hub

import "time"

// waitEntry is one waiting connection with its enqueue time, used for
// FIFO ordering and optional wait expiry.
type waitEntry struct {
	connID     string
	enqueuedAt time.Time
}

// waitQueue is the FIFO stranger queue. The membership set keeps push
// idempotent and remove O(1) for the common lookup.
type waitQueue struct {
	entries []waitEntry
	members map[string]struct{}
}

func newWaitQueue() *waitQueue {
	return &waitQueue{members: make(map[string]struct{})}
}

// push appends connID to the tail unless it is already queued. Returns
// whether the entry was added.
func (q *waitQueue) push(connID string, now time.Time) bool {
	if _, ok := q.members[connID]; ok {
		return false
	}
	q.entries = append(q.entries, waitEntry{connID: connID, enqueuedAt: now})
	q.members[connID] = struct{}{}
	return true
}

// pop removes and returns the head entry. ok is false on an empty queue.
func (q *waitQueue) pop() (waitEntry, bool) {
	if len(q.entries) == 0 {
		return waitEntry{}, false
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	delete(q.members, e.connID)
	return e, true
}

// remove deletes connID from the queue wherever it sits. Returns whether it
// was present.
func (q *waitQueue) remove(connID string) bool {
	if _, ok := q.members[connID]; !ok {
		return false
	}
	delete(q.members, connID)
	for i, e := range q.entries {
		if e.connID == connID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	return true
}

// contains reports whether connID is queued.
func (q *waitQueue) contains(connID string) bool {
	_, ok := q.members[connID]
	return ok
}

func (q *waitQueue) len() int {
	return len(q.entries)
}
