package service

import (
	"sync"
	"testing"
)

// TestStampedeTracker_RecordMiss_RecordResolved verifies that RecordMiss increments and
// returns the concurrent count per key and that RecordResolved decrements correctly
// until the key is removed.
func TestStampedeTracker_RecordMiss_RecordResolved(t *testing.T) {
	st := newStampedeTracker()
	key := "current:london"

	// First miss: count 1
	if got := st.RecordMiss(key); got != 1 {
		t.Errorf("RecordMiss first = %d, want 1", got)
	}
	// Second concurrent miss: count 2
	if got := st.RecordMiss(key); got != 2 {
		t.Errorf("RecordMiss second = %d, want 2", got)
	}

	// Complete one miss
	st.RecordResolved(key)
	if got := st.RecordMiss(key); got != 2 {
		t.Errorf("after one resolved, RecordMiss = %d, want 2", got)
	}
	st.RecordResolved(key)
	st.RecordResolved(key)
	// All cleared; next miss is 1
	if got := st.RecordMiss(key); got != 1 {
		t.Errorf("after all resolved, RecordMiss = %d, want 1", got)
	}
	st.RecordResolved(key)
}

// TestStampedeTracker_Concurrent verifies that concurrent RecordMiss/RecordResolved
// calls do not race and leave the tracker in a consistent state.
func TestStampedeTracker_Concurrent(t *testing.T) {
	st := newStampedeTracker()
	key := "current:london"
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.RecordMiss(key)
			st.RecordResolved(key)
		}()
	}
	wg.Wait()
	// No active misses should remain; next miss starts at 1.
	if got := st.RecordMiss(key); got != 1 {
		t.Errorf("after concurrent ops RecordMiss = %d, want 1", got)
	}
	st.RecordResolved(key)
}
