// Package ds provides generic data structures for actor state.
package ds

import (
	"encoding/json"
	"fmt"
)

type StringSet = Set[string]

// Set is an ordered set: O(1) membership, iteration in insertion order.
// Deterministic order keeps serialized actor state stable. The zero value
// is an empty set ready to use.
type Set[T comparable] struct {
	items map[T]struct{}
	order []T
}

func (s *Set[T]) String() string {
	return fmt.Sprintf("%v", s.order)
}

// Add adds v and reports whether it was new. (mutates)
func (s *Set[T]) Add(v T) bool {
	if s.Contains(v) {
		return false
	}
	if s.items == nil {
		s.items = make(map[T]struct{})
	}
	s.items[v] = struct{}{}
	s.order = append(s.order, v)
	return true
}

// Remove removes the given values; O(n) in the set size. (mutates)
func (s *Set[T]) Remove(vs ...T) {
	removed := false
	for _, v := range vs {
		if _, ok := s.items[v]; ok {
			delete(s.items, v)
			removed = true
		}
	}
	if !removed {
		return
	}
	kept := s.order[:0]
	for _, v := range s.order {
		if _, ok := s.items[v]; ok {
			kept = append(kept, v)
		}
	}
	s.order = kept
}

func (s *Set[T]) Contains(v T) bool {
	_, ok := s.items[v]
	return ok
}

func (s *Set[T]) Len() int { return len(s.items) }

func (s *Set[T]) IsEmpty() bool { return len(s.items) == 0 }

// ForEach iterates in insertion order.
func (s *Set[T]) ForEach(fn func(T)) {
	for _, v := range s.order {
		fn(v)
	}
}

// Values returns a copy of the elements in insertion order.
func (s *Set[T]) Values() []T {
	out := make([]T, len(s.order))
	copy(out, s.order)
	return out
}

// Filter returns the elements for which fn is true, in order.
func (s *Set[T]) Filter(fn func(T) bool) *Set[T] {
	out := NewSet[T]()
	for _, v := range s.order {
		if fn(v) {
			out.Add(v)
		}
	}
	return out
}

func (s *Set[T]) Copy() *Set[T] {
	return NewSet(s.order...)
}

// Eq reports whether both sets hold the same elements, ignoring order.
func (s *Set[T]) Eq(other *Set[T]) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, v := range other.order {
		if !s.Contains(v) {
			return false
		}
	}
	return true
}

// EqValues reports whether the set holds exactly vs.
func (s *Set[T]) EqValues(vs ...T) bool {
	return s.Eq(NewSet(vs...))
}

// MarshalJSON writes the set as an ordered JSON array.
func (s Set[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

func (s *Set[T]) UnmarshalJSON(data []byte) error {
	var vs []T
	if err := json.Unmarshal(data, &vs); err != nil {
		return err
	}
	*s = Set[T]{}
	for _, v := range vs {
		s.Add(v)
	}
	return nil
}

func NewSet[T comparable](items ...T) *Set[T] {
	s := &Set[T]{items: make(map[T]struct{}, len(items)), order: make([]T, 0, len(items))}
	for _, v := range items {
		s.Add(v)
	}
	return s
}

func NewStringSet(items ...string) *StringSet {
	return NewSet(items...)
}
