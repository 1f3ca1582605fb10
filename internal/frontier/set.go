package frontier

// Set is a plain membership set. Not safe for concurrent use; the Frontier
// guards it.
type Set[T comparable] map[T]struct{}

func NewSet[T comparable]() Set[T] {
	return make(Set[T])
}

func (s Set[T]) Add(item T) {
	s[item] = struct{}{}
}

// AddIfAbsent inserts item and reports whether it was not present before.
func (s Set[T]) AddIfAbsent(item T) bool {
	if _, exists := s[item]; exists {
		return false
	}
	s[item] = struct{}{}
	return true
}

func (s Set[T]) Contains(item T) bool {
	_, exists := s[item]
	return exists
}

func (s Set[T]) Size() int {
	return len(s)
}
