package interval

import "cmp"

// Sequence is an externally owned, indexable collection sorted by the
// intervals its elements map to.
type Sequence[E any] interface {
	Len() int
	At(i int) E
}

// MappedSet presents a Sequence as a read-only Set without copying it.
// Elements must map to pairwise disjoint intervals; touching neighbours are
// reported as one coalesced interval.
type MappedSet[T cmp.Ordered, E any] struct {
	src    Sequence[E]
	mapper func(E) Interval[T]
}

// NewMapped creates a view of src using mapper to derive each interval.
func NewMapped[T cmp.Ordered, E any](src Sequence[E], mapper func(E) Interval[T]) *MappedSet[T, E] {
	return &MappedSet[T, E]{src: src, mapper: mapper}
}

func (m *MappedSet[T, E]) get(i int) Interval[T] { return m.mapper(m.src.At(i)) }

// search returns the first index whose mapped interval satisfies pred; pred
// must be monotone over the sequence.
func (m *MappedSet[T, E]) search(pred func(Interval[T]) bool) int {
	lo, hi := 0, m.src.Len()
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if pred(m.get(mid)) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

func (m *MappedSet[T, E]) IsEmpty() bool { return m.src.Len() == 0 }

func (m *MappedSet[T, E]) Len() int { return len(m.coalesced()) }

func (m *MappedSet[T, E]) Intervals() []Interval[T] { return m.coalesced() }

func (m *MappedSet[T, E]) coalesced() sorted[T] {
	n := m.src.Len()
	in := make([]Interval[T], n)
	for i := 0; i < n; i++ {
		in[i] = m.get(i)
	}
	return coalesce(in)
}

func (m *MappedSet[T, E]) Contains(v T) bool {
	i := m.search(func(iv Interval[T]) bool { return iv.from > v }) - 1
	return i >= 0 && v < m.get(i).to
}

func (m *MappedSet[T, E]) ContainsInterval(from, to T) bool {
	return m.coalesced().ContainsInterval(from, to)
}

func (m *MappedSet[T, E]) Intersects(from, to T) bool {
	if !(from < to) {
		return false
	}
	i := m.search(func(iv Interval[T]) bool { return iv.to > from })
	return i < m.src.Len() && m.get(i).from < to
}

func (m *MappedSet[T, E]) IntersectsSet(o Set[T]) bool {
	return m.coalesced().IntersectsSet(o)
}

func (m *MappedSet[T, E]) Min() (T, error) {
	if m.IsEmpty() {
		var zero T
		return zero, ErrEmptySet
	}
	return m.get(0).from, nil
}

func (m *MappedSet[T, E]) Max() (T, error) {
	if m.IsEmpty() {
		var zero T
		return zero, ErrEmptySet
	}
	return m.get(m.src.Len() - 1).to, nil
}

func (m *MappedSet[T, E]) Floor(v T) (Interval[T], bool)   { return m.coalesced().Floor(v) }
func (m *MappedSet[T, E]) Lower(v T) (Interval[T], bool)   { return m.coalesced().Lower(v) }
func (m *MappedSet[T, E]) Ceiling(v T) (Interval[T], bool) { return m.coalesced().Ceiling(v) }
func (m *MappedSet[T, E]) Higher(v T) (Interval[T], bool)  { return m.coalesced().Higher(v) }
