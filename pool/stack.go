// File: pool/stack.go
// Package pool
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"sync"

	"github.com/momentics/hioload-net/api"
)

// Stack is a bounded LIFO pool safe for concurrent Push/Pop.
type Stack[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
}

// NewStack creates an empty stack holding at most capacity items.
func NewStack[T any](capacity int) *Stack[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Stack[T]{items: make([]T, 0, capacity), capacity: capacity}
}

// Push adds obj; returns false if the stack is full.
func (s *Stack[T]) Push(obj T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == s.capacity {
		return false
	}
	s.items = append(s.items, obj)
	return true
}

// Pop removes the top item; ok is false when empty.
func (s *Stack[T]) Pop() (obj T, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	if n == 0 {
		return obj, false
	}
	obj = s.items[n-1]
	var zero T
	s.items[n-1] = zero
	s.items = s.items[:n-1]
	return obj, true
}

// Len returns the number of pooled items.
func (s *Stack[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Cap returns the fixed capacity.
func (s *Stack[T]) Cap() int {
	return s.capacity
}

var _ api.ContextPool[int] = (*Stack[int])(nil)
