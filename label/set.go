package label

// set is an insertion-ordered collection of unique labels.
type set struct {
	order []string
	index map[string]int
}

// newSet builds a set from labels. A nil slice (no stored data) yields an
// empty set.
func newSet(labels []string) *set {
	s := &set{index: make(map[string]int, len(labels))}
	for _, l := range labels {
		s.add(l)
	}
	return s
}

func (s *set) add(l string) {
	if _, ok := s.index[l]; ok {
		return
	}
	s.index[l] = len(s.order)
	s.order = append(s.order, l)
}

func (s *set) remove(l string) {
	i, ok := s.index[l]
	if !ok {
		return
	}
	s.order = append(s.order[:i], s.order[i+1:]...)
	delete(s.index, l)
	for j := i; j < len(s.order); j++ {
		s.index[s.order[j]] = j
	}
}

// slice never returns nil so an empty set encodes as [].
func (s *set) slice() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
