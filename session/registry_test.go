package session_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-net/session"
)

func TestRegistryBasics(t *testing.T) {
	t.Parallel()

	r := session.NewRegistry(3)
	a, b := session.NewToken(nil), session.NewToken(nil)

	r.Add(a.ID(), a)
	r.Add(b.ID(), b)
	assert.Equal(t, 2, r.Len())

	got, ok := r.Get(a.ID())
	require.True(t, ok)
	assert.Same(t, a, got)

	assert.True(t, r.Remove(a.ID()))
	assert.False(t, r.Remove(a.ID()))
	_, ok = r.Get(a.ID())
	assert.False(t, ok)

	var seen []string
	r.Range(func(id string, _ *session.Token) bool {
		seen = append(seen, id)
		return true
	})
	assert.Equal(t, []string{b.ID()}, seen)
}

func TestRegistryRangeStops(t *testing.T) {
	t.Parallel()

	r := session.NewRegistry(0)
	for i := 0; i < 10; i++ {
		r.Add(fmt.Sprintf("s-%d", i), nil)
	}

	var n int
	r.Range(func(string, *session.Token) bool {
		n++
		return n < 3
	})
	assert.Equal(t, 3, n)
}

func TestRegistryTrackRemovesOnClose(t *testing.T) {
	t.Parallel()

	r := session.NewRegistry(4)
	tok := session.NewToken(nil)
	id := tok.ID()

	r.Track(tok)
	bind(tok, newFakeSocket(), 8)
	_, ok := r.Get(id)
	require.True(t, ok)

	tok.Close()
	_, ok = r.Get(id)
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}

func TestRegistryConcurrent(t *testing.T) {
	t.Parallel()

	r := session.NewRegistry(8)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("%d-%d", w, i)
				r.Add(id, nil)
				if i%2 == 0 {
					r.Remove(id)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 8*100, r.Len())
}
