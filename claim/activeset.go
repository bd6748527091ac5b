package claim

import "sync"

// activeSet tracks the ids of currently-active events for one kind. Removal
// is a linear scan followed by swap-with-last-and-pop, so enumeration order
// is not preserved. Fine for the small active-event counts this system runs
// with; revisit before pointing a high-churn workload at it.
//
// The mutex exists because the registry is used outside the database's
// transaction serialization.
type activeSet struct {
	mu  sync.Mutex
	ids []int64
}

func (s *activeSet) add(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, id)
}

// remove deletes id from the set and reports whether it was present.
func (s *activeSet) remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range s.ids {
		if v == id {
			last := len(s.ids) - 1
			s.ids[i] = s.ids[last]
			s.ids = s.ids[:last]
			return true
		}
	}
	return false
}

func (s *activeSet) contains(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.ids {
		if v == id {
			return true
		}
	}
	return false
}

// snapshot returns a copy of the current ids.
func (s *activeSet) snapshot() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.ids))
	copy(out, s.ids)
	return out
}

func (s *activeSet) reset(ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids[:0], ids...)
}
