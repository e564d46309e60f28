// File: pool/arena.go
// Package pool
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed-capacity buffer arena: one region allocated at startup, sliced into
// equally sized segments and recycled through an index-based free list.

package pool

import (
	"fmt"
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-net/api"
)

// Segment is an exclusive loan of segmentSize bytes from an Arena.
// The zero Segment is not on loan from any arena.
type Segment struct {
	arena  *Arena
	offset int
	data   []byte
}

// Offset returns the segment position within the arena backing region.
func (s Segment) Offset() int { return s.offset }

// Bytes returns the segment view. Its capacity is clamped to the segment so
// appends never spill into a neighbour.
func (s Segment) Bytes() []byte { return s.data }

// Len returns the segment size.
func (s Segment) Len() int { return len(s.data) }

// ArenaStats is a point-in-time view of arena accounting.
type ArenaStats struct {
	Capacity    int
	SegmentSize int
	Cursor      int
	Free        int
	InUse       int
	Acquired    uint64
	Released    uint64
}

// Arena hands out non-overlapping segments of a single backing region.
// It never grows: once the cursor reaches capacity and the free list is
// empty, Acquire fails.
type Arena struct {
	mu          sync.Mutex
	capacity    int
	segmentSize int

	buf    []byte
	unmap  func([]byte) error
	cursor int
	free   *queue.Queue // of int offsets
	loaned []bool       // indexed by offset / segmentSize

	inUse    int
	acquired uint64
	released uint64
}

// NewArena sizes an arena of totalBytes split into segmentSize segments.
// No memory is reserved until Init.
func NewArena(totalBytes, segmentSize int) (*Arena, error) {
	if segmentSize <= 0 || totalBytes < segmentSize {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "invalid arena geometry").
			WithContext("total", totalBytes).
			WithContext("segment", segmentSize)
	}
	return &Arena{
		capacity:    totalBytes,
		segmentSize: segmentSize,
		free:        queue.New(),
		loaned:      make([]bool, totalBytes/segmentSize),
	}, nil
}

// Init allocates the backing region. It must be called exactly once before
// the first Acquire.
func (a *Arena) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.buf != nil {
		return api.ErrAlreadyInitialized
	}
	buf, unmap, err := allocRegion(a.capacity)
	if err != nil {
		return fmt.Errorf("arena: allocate %d bytes: %w", a.capacity, err)
	}
	a.buf, a.unmap = buf, unmap
	return nil
}

// Acquire loans out one segment. Previously released segments are reused
// before the cursor advances.
func (a *Arena) Acquire() (Segment, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.buf == nil {
		return Segment{}, api.NewError(api.ErrCodeNotInitialized, "arena: acquire before init")
	}

	var off int
	if a.free.Length() > 0 {
		off = a.free.Remove().(int)
	} else {
		if a.cursor+a.segmentSize > a.capacity {
			return Segment{}, api.NewError(api.ErrCodeResourceExhausted, "arena exhausted").
				WithContext("capacity", a.capacity).
				WithContext("segment", a.segmentSize)
		}
		off = a.cursor
		a.cursor += a.segmentSize
	}

	a.loaned[off/a.segmentSize] = true
	a.inUse++
	a.acquired++
	end := off + a.segmentSize
	return Segment{arena: a, offset: off, data: a.buf[off:end:end]}, nil
}

// Release returns seg to the free list. Segments not currently on loan from
// this arena are rejected with api.ErrNotOnLoan.
func (a *Arena) Release(seg Segment) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.buf == nil {
		return api.ErrNotInitialized
	}
	if seg.arena != a || seg.offset%a.segmentSize != 0 {
		return api.ErrNotOnLoan
	}
	idx := seg.offset / a.segmentSize
	if idx < 0 || idx >= len(a.loaned) || !a.loaned[idx] {
		return api.ErrNotOnLoan
	}

	a.loaned[idx] = false
	a.free.Add(seg.offset)
	a.inUse--
	a.released++
	return nil
}

// Bytes returns the whole backing region, or nil before Init.
func (a *Arena) Bytes() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf
}

// SegmentSize returns the fixed segment size.
func (a *Arena) SegmentSize() int { return a.segmentSize }

// Capacity returns the fixed arena size in bytes.
func (a *Arena) Capacity() int { return a.capacity }

// Stats returns arena accounting.
func (a *Arena) Stats() ArenaStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ArenaStats{
		Capacity:    a.capacity,
		SegmentSize: a.segmentSize,
		Cursor:      a.cursor,
		Free:        a.free.Length(),
		InUse:       a.inUse,
		Acquired:    a.acquired,
		Released:    a.released,
	}
}

// Close frees the backing region. Every segment becomes invalid; callers
// must have stopped all I/O on them first.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.buf == nil {
		return nil
	}
	buf := a.buf
	a.buf = nil
	if a.unmap != nil {
		return a.unmap(buf)
	}
	return nil
}
