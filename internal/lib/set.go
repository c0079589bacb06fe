package lib

// OrderedSet keeps the first-seen insertion order of unique keys
type OrderedSet[T comparable] struct {
	index map[T]struct{}
	keys  []T
}

func NewOrderedSet[T comparable](values ...T) *OrderedSet[T] {
	s := &OrderedSet[T]{index: make(map[T]struct{}, len(values))}
	s.Add(values...)
	return s
}

// Add inserts the values that are not in the set yet, returns how many were added
func (s *OrderedSet[T]) Add(values ...T) int {
	added := 0
	for _, v := range values {
		if _, ok := s.index[v]; ok {
			continue
		}
		s.index[v] = struct{}{}
		s.keys = append(s.keys, v)
		added++
	}
	return added
}

func (s *OrderedSet[T]) Contains(value T) bool {
	_, ok := s.index[value]
	return ok
}

func (s *OrderedSet[T]) Len() int {
	return len(s.keys)
}

func (s *OrderedSet[T]) ToSlice() []T {
	out := make([]T, len(s.keys))
	copy(out, s.keys)
	return out
}
