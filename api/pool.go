// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Defines abstract pooling APIs for reusable I/O operation contexts.

package api

// ContextPool is a capacity-bounded, concurrency-safe pool of reusable
// objects. Implementations hand objects out in LIFO order.
type ContextPool[T any] interface {
	// Push returns obj to the pool. It reports false when the pool is full.
	Push(obj T) bool

	// Pop removes the most recently pushed object. ok is false when empty.
	Pop() (obj T, ok bool)

	// Len returns the number of pooled objects.
	Len() int

	// Cap returns the pool capacity.
	Cap() int
}
