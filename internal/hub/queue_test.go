package hub

import (
	"testing"
	"time"
)

func TestQueueFIFOOrder(t *testing.T) {
	q := newWaitQueue()
	now := time.Now()

	q.push("a", now)
	q.push("b", now)
	q.push("c", now)

	for _, want := range []string{"a", "b", "c"} {
		e, ok := q.pop()
		if !ok || e.connID != want {
			t.Fatalf("pop = (%q, %v), want (%q, true)", e.connID, ok, want)
		}
	}
	if _, ok := q.pop(); ok {
		t.Error("pop on empty queue should report not ok")
	}
}

func TestQueuePushDuplicate(t *testing.T) {
	q := newWaitQueue()
	now := time.Now()

	if !q.push("a", now) {
		t.Fatal("first push should succeed")
	}
	if q.push("a", now) {
		t.Error("duplicate push should be rejected")
	}
	if q.len() != 1 {
		t.Errorf("len = %d, want 1", q.len())
	}
}

func TestQueueRemoveMiddle(t *testing.T) {
	q := newWaitQueue()
	now := time.Now()
	q.push("a", now)
	q.push("b", now)
	q.push("c", now)

	if !q.remove("b") {
		t.Fatal("remove should find b")
	}
	if q.remove("b") {
		t.Error("second remove should report not found")
	}
	if q.contains("b") {
		t.Error("b should be gone")
	}

	e, _ := q.pop()
	if e.connID != "a" {
		t.Errorf("head = %q, want a", e.connID)
	}
	e, _ = q.pop()
	if e.connID != "c" {
		t.Errorf("next = %q, want c", e.connID)
	}
}
