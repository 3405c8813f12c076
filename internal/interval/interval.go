// Package interval implements ordered, coalescing sets of half-open intervals.
//
// Sets are used throughout the scheduler to express time-based exclusivity:
// job occupancy, trajectory claims of in-flight alternatives and idle windows.
package interval

import (
	"cmp"
	"errors"
	"fmt"
)

var (
	// ErrInvalidInterval is returned when an interval would not satisfy from < to.
	ErrInvalidInterval = errors.New("interval: from must be less than to")
	// ErrEmptySet is returned when querying the bounds of an empty set.
	ErrEmptySet = errors.New("interval: set is empty")
	// ErrSealed is returned when mutating or resealing a sealed set.
	ErrSealed = errors.New("interval: set is sealed")
)

// Interval is the immutable half-open range [from, to).
type Interval[T cmp.Ordered] struct {
	from, to T
}

// New creates the interval [from, to).
func New[T cmp.Ordered](from, to T) (Interval[T], error) {
	// Written as a negation so NaN bounds are rejected too.
	if !(from < to) {
		return Interval[T]{}, fmt.Errorf("%w: [%v, %v)", ErrInvalidInterval, from, to)
	}
	return Interval[T]{from: from, to: to}, nil
}

// Must is like New but panics on invalid bounds.
func Must[T cmp.Ordered](from, to T) Interval[T] {
	iv, err := New(from, to)
	if err != nil {
		panic(err)
	}
	return iv
}

// From returns the inclusive lower bound.
func (i Interval[T]) From() T { return i.from }

// To returns the exclusive upper bound.
func (i Interval[T]) To() T { return i.to }

// Contains reports whether v lies within the interval.
func (i Interval[T]) Contains(v T) bool {
	return i.from <= v && v < i.to
}

// Encloses reports whether [from, to) lies completely within the interval.
func (i Interval[T]) Encloses(from, to T) bool {
	return i.from <= from && to <= i.to
}

// Intersects reports whether both intervals share at least one value.
func (i Interval[T]) Intersects(o Interval[T]) bool {
	return i.from < o.to && o.from < i.to
}

func (i Interval[T]) String() string {
	return fmt.Sprintf("[%v, %v)", i.from, i.to)
}
