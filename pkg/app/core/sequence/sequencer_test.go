package sequence

import (
	"sync"
	"testing"
)

func TestSequencer_Monotonic(t *testing.T) {
	s := New(0)
	for want := uint64(1); want <= 5; want++ {
		if got := s.Next(); got != want {
			t.Fatalf("Next() = %d, want %d", got, want)
		}
	}
	if s.Current() != 5 {
		t.Errorf("Current() = %d, want 5", s.Current())
	}
}

func TestSequencer_ConcurrentUnique(t *testing.T) {
	s := New(10)
	const workers, per = 8, 500

	var mu sync.Mutex
	seen := make(map[uint64]struct{}, workers*per)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]uint64, 0, per)
			for i := 0; i < per; i++ {
				local = append(local, s.Next())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != workers*per {
		t.Fatalf("got %d unique ids, want %d", len(seen), workers*per)
	}
	if _, ok := seen[10]; ok {
		t.Error("start value must not be issued")
	}
}
