package id

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsUniqueAndSorted(t *testing.T) {
	ids := make([]string, 0, 1000)
	for range 1000 {
		ids = append(ids, New())
	}
	assert.True(t, sort.StringsAreSorted(ids))

	seen := make(map[string]struct{}, len(ids))
	for _, v := range ids {
		_, dup := seen[v]
		require.False(t, dup, "duplicate id %s", v)
		seen[v] = struct{}{}
	}
}

func TestNewConcurrent(t *testing.T) {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]struct{}{}
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				v := New()
				mu.Lock()
				seen[v] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 800)
}

func TestTime(t *testing.T) {
	before := time.Now().UTC().Add(-time.Second)
	got, ok := Time(New())
	require.True(t, ok)
	assert.True(t, got.After(before))

	_, ok = Time("not-an-id")
	assert.False(t, ok)
}
