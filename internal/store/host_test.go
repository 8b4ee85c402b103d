package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reactor/internal/reactive"
)

func TestHeadless_NoDeduplication(t *testing.T) {
	var h Headless
	a := h.Register("todos", map[string]any{"n": 1}, true)
	b := h.Register("todos", map[string]any{"n": 2}, true)

	require.IsType(t, &reactive.Object{}, a)
	require.IsType(t, &reactive.Object{}, b)
	assert.NotSame(t, a, b)
	assert.Equal(t, int64(2), b.(*reactive.Object).Get("n"))

	h.Release("todos")
}

func TestRegistry_OneInstancePerName(t *testing.T) {
	r := NewRegistry()
	first := r.Register("todos", map[string]any{"n": 1}, true)
	second := r.Register("todos", map[string]any{"n": 2}, true)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), second.(*reactive.Object).Get("n"), "second default must be discarded")

	got, ok := r.Lookup("todos")
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestRegistry_ReleaseCreatesFresh(t *testing.T) {
	r := NewRegistry()
	first := r.Register("todos", []any{1}, true)
	r.Release("todos")
	r.Release("todos")

	second := r.Register("todos", []any{1, 2}, true)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, second.(*reactive.Array).Len())
}

func TestRegistry_ScalarsAreNotReactive(t *testing.T) {
	r := NewRegistry()
	got := r.Register("count", 5, true)
	assert.Equal(t, 5, got)
	assert.False(t, reactive.Is(got))
}

func TestRegistry_ConcurrentRegistration(t *testing.T) {
	r := NewRegistry()

	const n = 16
	results := make([]any, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.Register("shared", map[string]any{"i": i}, true)
		}()
	}
	wg.Wait()

	for _, got := range results[1:] {
		assert.Same(t, results[0], got)
	}
}
