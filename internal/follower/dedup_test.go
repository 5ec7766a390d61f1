package follower

import "testing"

func TestDedupWindow_RejectsExactRepeat(t *testing.T) {
	w := newDedupWindow(10)

	if !w.accept("hello", 100) {
		t.Fatal("first occurrence should be accepted")
	}
	if w.accept("hello", 100) {
		t.Fatal("exact repeat should be rejected")
	}
	if !w.accept("hello", 101) {
		t.Fatal("same message, different timestamp should be accepted")
	}
	if !w.accept("world", 100) {
		t.Fatal("different message, same timestamp should be accepted")
	}
}

func TestDedupWindow_MissingTimestampCollapses(t *testing.T) {
	w := newDedupWindow(10)

	if !w.accept("heartbeat", 0) {
		t.Fatal("first heartbeat (no timestamp) should be accepted")
	}
	if w.accept("heartbeat", 0) {
		t.Fatal("second heartbeat sharing (message, 0) should collapse as a duplicate")
	}
}

func TestDedupWindow_EvictsOldestPastCapacity(t *testing.T) {
	w := newDedupWindow(2)

	w.accept("a", 1)
	w.accept("b", 2)
	w.accept("c", 3) // evicts "a"

	if !w.accept("a", 1) {
		t.Fatal("entry evicted past capacity should be accepted again")
	}
	if w.accept("c", 3) {
		t.Fatal("entry still within the window should still be rejected")
	}
}

func TestDedupBuffer_ScopesWindowsPerKey(t *testing.T) {
	b := newDedupBuffer(10)

	if !b.accept("pod-a.app", "same", 5) {
		t.Fatal("first key's first entry should be accepted")
	}
	if !b.accept("pod-b.app", "same", 5) {
		t.Fatal("identical message/timestamp under a different key should be accepted")
	}
	if b.accept("pod-a.app", "same", 5) {
		t.Fatal("repeat under the original key should be rejected")
	}
}
