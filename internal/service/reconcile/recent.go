package reconcile

// recentSet is a bounded FIFO set of hashes.
type recentSet struct {
	limit int
	order []string
	items map[string]struct{}
}

func newRecentSet(limit int) *recentSet {
	return &recentSet{limit: limit, items: make(map[string]struct{}, limit)}
}

func (s *recentSet) add(key string) {
	if _, ok := s.items[key]; ok {
		return
	}
	if len(s.order) >= s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.items, oldest)
	}
	s.order = append(s.order, key)
	s.items[key] = struct{}{}
}

// take removes key and reports whether it was present.
func (s *recentSet) take(key string) bool {
	if _, ok := s.items[key]; !ok {
		return false
	}
	delete(s.items, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *recentSet) len() int {
	return len(s.items)
}
