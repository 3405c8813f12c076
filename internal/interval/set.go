package interval

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Set is a read-only set of disjoint, non-touching intervals sorted by start.
type Set[T cmp.Ordered] interface {
	IsEmpty() bool
	// Len returns the number of stored (coalesced) intervals.
	Len() int
	// Intervals returns a sorted copy of the stored intervals.
	Intervals() []Interval[T]
	Contains(v T) bool
	// ContainsInterval reports whether [from, to) is completely covered by a
	// single stored interval. Empty ranges are vacuously contained.
	ContainsInterval(from, to T) bool
	Intersects(from, to T) bool
	IntersectsSet(o Set[T]) bool
	// Min returns the smallest value of the set.
	Min() (T, error)
	// Max returns the supremum of the set (the exclusive end of the last interval).
	Max() (T, error)
	// Floor returns the last interval starting at or before v.
	Floor(v T) (Interval[T], bool)
	// Lower returns the last interval starting strictly before v.
	Lower(v T) (Interval[T], bool)
	// Ceiling returns the first interval starting at or after v.
	Ceiling(v T) (Interval[T], bool)
	// Higher returns the first interval starting strictly after v.
	Higher(v T) (Interval[T], bool)
}

// sorted holds coalesced intervals and implements all read operations of Set.
type sorted[T cmp.Ordered] []Interval[T]

func (s sorted[T]) IsEmpty() bool { return len(s) == 0 }

func (s sorted[T]) Len() int { return len(s) }

func (s sorted[T]) Intervals() []Interval[T] { return slices.Clone([]Interval[T](s)) }

// upper returns the index of the first interval with from > v.
func (s sorted[T]) upper(v T) int {
	i, _ := slices.BinarySearchFunc(s, v, func(iv Interval[T], v T) int {
		if iv.from <= v {
			return -1
		}
		return 1
	})
	return i
}

// lower returns the index of the first interval with from >= v.
func (s sorted[T]) lower(v T) int {
	i, _ := slices.BinarySearchFunc(s, v, func(iv Interval[T], v T) int {
		return cmp.Compare(iv.from, v)
	})
	return i
}

// firstEndingAfter returns the index of the first interval with to > v.
func (s sorted[T]) firstEndingAfter(v T) int {
	i, _ := slices.BinarySearchFunc(s, v, func(iv Interval[T], v T) int {
		if iv.to <= v {
			return -1
		}
		return 1
	})
	return i
}

func (s sorted[T]) Contains(v T) bool {
	i := s.upper(v) - 1
	return i >= 0 && v < s[i].to
}

func (s sorted[T]) ContainsInterval(from, to T) bool {
	if !(from < to) {
		return true
	}
	i := s.upper(from) - 1
	return i >= 0 && s[i].Encloses(from, to)
}

func (s sorted[T]) Intersects(from, to T) bool {
	if !(from < to) {
		return false
	}
	i := s.firstEndingAfter(from)
	return i < len(s) && s[i].from < to
}

func (s sorted[T]) IntersectsSet(o Set[T]) bool {
	return intersects[T](s, o.Intervals())
}

func (s sorted[T]) Min() (T, error) {
	if len(s) == 0 {
		var zero T
		return zero, ErrEmptySet
	}
	return s[0].from, nil
}

func (s sorted[T]) Max() (T, error) {
	if len(s) == 0 {
		var zero T
		return zero, ErrEmptySet
	}
	return s[len(s)-1].to, nil
}

func (s sorted[T]) at(i int) (Interval[T], bool) {
	if i < 0 || i >= len(s) {
		return Interval[T]{}, false
	}
	return s[i], true
}

func (s sorted[T]) Floor(v T) (Interval[T], bool)   { return s.at(s.upper(v) - 1) }
func (s sorted[T]) Lower(v T) (Interval[T], bool)   { return s.at(s.lower(v) - 1) }
func (s sorted[T]) Ceiling(v T) (Interval[T], bool) { return s.at(s.lower(v)) }
func (s sorted[T]) Higher(v T) (Interval[T], bool)  { return s.at(s.upper(v)) }

func (s sorted[T]) String() string {
	parts := make([]string, len(s))
	for i, iv := range s {
		parts[i] = iv.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// SimpleSet is an immutable Set. The zero value is the empty set.
type SimpleSet[T cmp.Ordered] struct {
	sorted[T]
}

// Of builds a set from arbitrary, possibly overlapping intervals.
func Of[T cmp.Ordered](ivs ...Interval[T]) SimpleSet[T] {
	in := slices.Clone(ivs)
	slices.SortFunc(in, func(a, b Interval[T]) int { return cmp.Compare(a.from, b.from) })
	return SimpleSet[T]{coalesce(in)}
}

// Single builds a set holding [from, to). An empty range yields the empty set.
func Single[T cmp.Ordered](from, to T) SimpleSet[T] {
	if !(from < to) {
		return SimpleSet[T]{}
	}
	return SimpleSet[T]{sorted[T]{{from: from, to: to}}}
}

// Copy snapshots any Set into an immutable SimpleSet.
func Copy[T cmp.Ordered](s Set[T]) SimpleSet[T] {
	return SimpleSet[T]{s.Intervals()}
}

// Union returns s ∪ o.
func (s SimpleSet[T]) Union(o Set[T]) SimpleSet[T] {
	return SimpleSet[T]{union[T](s.sorted, o.Intervals())}
}

// Difference returns s \ o.
func (s SimpleSet[T]) Difference(o Set[T]) SimpleSet[T] {
	return SimpleSet[T]{difference[T](s.sorted, o.Intervals())}
}

// Intersection returns s ∩ o.
func (s SimpleSet[T]) Intersection(o Set[T]) SimpleSet[T] {
	return SimpleSet[T]{intersection[T](s.sorted, o.Intervals())}
}

// UnionInterval returns s ∪ [from, to).
func (s SimpleSet[T]) UnionInterval(from, to T) SimpleSet[T] {
	return s.Union(Single(from, to))
}

// DifferenceInterval returns s \ [from, to).
func (s SimpleSet[T]) DifferenceInterval(from, to T) SimpleSet[T] {
	return s.Difference(Single(from, to))
}

// IntersectionInterval returns s ∩ [from, to).
func (s SimpleSet[T]) IntersectionInterval(from, to T) SimpleSet[T] {
	return s.Intersection(Single(from, to))
}

// SubSet returns the restriction of s to [from, to). Intervals crossing a
// boundary are included and clipped.
func (s SimpleSet[T]) SubSet(from, to T) SimpleSet[T] {
	return s.IntersectionInterval(from, to)
}

// MutableSet is a Set with in-place mutation until it gets sealed.
// The zero value is an empty, unsealed set.
type MutableSet[T cmp.Ordered] struct {
	sorted[T]
	sealed bool
}

// NewMutable creates an empty mutable set.
func NewMutable[T cmp.Ordered]() *MutableSet[T] {
	return &MutableSet[T]{}
}

func (m *MutableSet[T]) checkMutable() error {
	if m.sealed {
		return ErrSealed
	}
	return nil
}

// Add inserts [from, to), merging with touching or overlapping intervals.
func (m *MutableSet[T]) Add(from, to T) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	iv, err := New(from, to)
	if err != nil {
		return err
	}
	m.sorted = union[T](m.sorted, []Interval[T]{iv})
	return nil
}

// AddSet inserts all intervals of o.
func (m *MutableSet[T]) AddSet(o Set[T]) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.sorted = union[T](m.sorted, o.Intervals())
	return nil
}

// Remove deletes [from, to), possibly splitting a stored interval in two.
func (m *MutableSet[T]) Remove(from, to T) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	iv, err := New(from, to)
	if err != nil {
		return err
	}
	m.sorted = difference[T](m.sorted, []Interval[T]{iv})
	return nil
}

// RemoveSet deletes all intervals of o.
func (m *MutableSet[T]) RemoveSet(o Set[T]) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.sorted = difference[T](m.sorted, o.Intervals())
	return nil
}

// Intersect restricts the set to [from, to).
func (m *MutableSet[T]) Intersect(from, to T) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	iv, err := New(from, to)
	if err != nil {
		return err
	}
	m.sorted = intersection[T](m.sorted, []Interval[T]{iv})
	return nil
}

// Clear removes all intervals.
func (m *MutableSet[T]) Clear() error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.sorted = nil
	return nil
}

// Seal makes the set permanently immutable. Sealing twice fails.
func (m *MutableSet[T]) Seal() error {
	if m.sealed {
		return ErrSealed
	}
	m.sealed = true
	return nil
}

// IsSealed reports whether Seal has been called.
func (m *MutableSet[T]) IsSealed() bool { return m.sealed }

// Snapshot returns an immutable copy of the current content.
func (m *MutableSet[T]) Snapshot() SimpleSet[T] {
	return SimpleSet[T]{m.Intervals()}
}

// Clone returns an unsealed copy.
func (m *MutableSet[T]) Clone() *MutableSet[T] {
	return &MutableSet[T]{sorted: m.Intervals()}
}

func (m *MutableSet[T]) String() string {
	return fmt.Sprintf("%v", m.sorted)
}
