package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(body []byte) ([]byte, error) { return body, nil }

func TestRouter_SetFind(t *testing.T) {
	r := New()
	r.Set(1, 1, echoHandler)
	h, ok := r.Find(1, 1)
	require.True(t, ok)
	out, err := h([]byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(out))
}

func TestRouter_FindMissingWithoutDefault(t *testing.T) {
	r := New()
	_, ok := r.Find(1, 1)
	assert.False(t, ok)
}

func TestRouter_DefaultFallback(t *testing.T) {
	r := New()
	r.SetDefault(echoHandler)
	h, ok := r.Find(9, 9)
	require.True(t, ok)
	out, err := h([]byte("fallback"))
	require.NoError(t, err)
	assert.Equal(t, "fallback", string(out))
}

func TestRouter_SpecificOverridesDefault(t *testing.T) {
	r := New()
	r.SetDefault(func(body []byte) ([]byte, error) { return []byte("default"), nil })
	r.Set(1, 1, func(body []byte) ([]byte, error) { return []byte("specific"), nil })

	h, ok := r.Find(1, 1)
	require.True(t, ok)
	out, _ := h(nil)
	assert.Equal(t, "specific", string(out))

	h, ok = r.Find(2, 2)
	require.True(t, ok)
	out, _ = h(nil)
	assert.Equal(t, "default", string(out))
}

// TestRouter_Idempotence is testable property 8: set then erase leaves the
// router unchanged from its initial (empty) state.
func TestRouter_Idempotence(t *testing.T) {
	r := New()
	_, okBefore := r.Find(3, 5)

	r.Set(3, 5, echoHandler)
	r.Erase(3, 5)

	_, okAfter := r.Find(3, 5)
	assert.Equal(t, okBefore, okAfter)
}

func TestRouter_ClearRemovesDefaultToo(t *testing.T) {
	r := New()
	r.SetDefault(echoHandler)
	r.Set(1, 1, echoHandler)
	r.Clear()
	_, ok := r.Find(1, 1)
	assert.False(t, ok)
}
