package orderedmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_SetGetDelete(t *testing.T) {
	m := New[int]()

	_, existed := m.Set("a", 1)
	assert.False(t, existed)
	m.Set("b", 2)
	m.Set("c", 3)

	v, ok := m.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	prev, existed := m.Set("b", 20)
	assert.True(t, existed)
	assert.Equal(t, 2, prev)

	removed, ok := m.Delete("a")
	assert.True(t, ok)
	assert.Equal(t, 1, removed)

	_, ok = m.Delete("a")
	assert.False(t, ok)
	assert.False(t, m.Has("a"))
	assert.Equal(t, 2, m.Len())
}

func TestMap_InsertionOrder(t *testing.T) {
	m := New[string]()
	for _, k := range []string{"zeta", "alpha", "mid"} {
		m.Set(k, k)
	}
	// overwrite keeps position
	m.Set("zeta", "again")
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, m.Keys())

	m.Delete("alpha")
	m.Set("alpha", "back")
	assert.Equal(t, []string{"zeta", "mid", "alpha"}, m.Keys())

	var seen []string
	m.Range(func(key string, value string) bool {
		seen = append(seen, key)
		return key != "mid"
	})
	assert.Equal(t, []string{"zeta", "mid"}, seen)
}

func TestMap_Clear(t *testing.T) {
	m := New[int]()
	m.Set("x", 1)
	m.Clear()

	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.Keys())
	_, ok := m.Get("x")
	assert.False(t, ok)
}
