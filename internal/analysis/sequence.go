package analysis

import "sync/atomic"

// Sequence issues ordered fit numbers across concurrent fits run by one
// Service, so log lines and report rows from a comparison can be matched.
type Sequence struct {
	current int64
}

// Next returns a new number, starting at 1
func (s *Sequence) Next() int64 {
	return atomic.AddInt64(&s.current, 1)
}

// Current returns the last issued number without incrementing
func (s *Sequence) Current() int64 {
	return atomic.LoadInt64(&s.current)
}
