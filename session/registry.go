// File: session/registry.go
// Package session
// Author: momentics <momentics@gmail.com>
//
// Sharded, thread-safe registry of live sessions.

package session

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Registry maps session ids to tokens.
type Registry struct {
	shards []*shard
	mask   uint64
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Token
}

// NewRegistry constructs a registry with shardCount shards, rounded up to a
// power of two.
func NewRegistry(shardCount int) *Registry {
	if shardCount <= 0 {
		shardCount = 16
	}

	n := nextPowerOfTwo(uint64(shardCount))
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{sessions: make(map[string]*Token)}
	}
	return &Registry{shards: shards, mask: n - 1}
}

func (r *Registry) shard(id string) *shard {
	return r.shards[xxhash.Sum64String(id)&r.mask]
}

// Add stores t under id. An existing entry is replaced.
func (r *Registry) Add(id string, t *Token) {
	sh := r.shard(id)
	sh.mu.Lock()
	sh.sessions[id] = t
	sh.mu.Unlock()
}

// Track registers t under its current id and removes it when the
// connection closes.
func (r *Registry) Track(t *Token) {
	id := t.ID()
	r.Add(id, t)
	t.OnClose(func(*Token) { r.Remove(id) })
}

// Get fetches a session if present.
func (r *Registry) Get(id string) (*Token, bool) {
	sh := r.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	t, ok := sh.sessions[id]
	return t, ok
}

// Remove deletes id and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	sh := r.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	_, ok := sh.sessions[id]
	delete(sh.sessions, id)
	return ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() (n int) {
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return
}

// Range calls fn for every session until fn returns false. fn must not
// modify the registry.
func (r *Registry) Range(fn func(id string, t *Token) bool) {
	for _, sh := range r.shards {
		sh.mu.RLock()
		for id, t := range sh.sessions {
			if !fn(id, t) {
				sh.mu.RUnlock()
				return
			}
		}
		sh.mu.RUnlock()
	}
}

func nextPowerOfTwo(v uint64) uint64 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	return v + 1
}
