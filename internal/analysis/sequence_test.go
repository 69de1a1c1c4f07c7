package analysis

import (
	"sync"
	"testing"
)

func TestSequence_Next(t *testing.T) {
	var s Sequence

	if current := s.Current(); current != 0 {
		t.Errorf("Expected initial current to be 0, got %d", current)
	}
	for want := int64(1); want <= 3; want++ {
		if got := s.Next(); got != want {
			t.Errorf("Expected %d, got %d", want, got)
		}
	}
	if current := s.Current(); current != 3 {
		t.Errorf("Expected current to be 3, got %d", current)
	}
}

func TestSequence_ConcurrentSafety(t *testing.T) {
	var s Sequence
	const goroutines, perGoroutine = 50, 20

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id := s.Next()
				mu.Lock()
				if seen[id] {
					t.Errorf("Duplicate number %d", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != goroutines*perGoroutine {
		t.Errorf("Expected %d numbers, got %d", goroutines*perGoroutine, len(seen))
	}
}
