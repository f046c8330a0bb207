package localstore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, ok, err := s.Get("cart-storage:abc")
	require.NoError(t, err)
	assert.False(t, ok, "absent key")

	require.NoError(t, s.Set("cart-storage:abc", []byte(`{"items":[]}`)))
	require.NoError(t, s.Set("cart-storage:abc", []byte(`{"items":[1]}`)))

	v, ok, err := s.Get("cart-storage:abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"items":[1]}`, string(v), "last write wins")
}

func TestFileStore_KeysWithSeparatorsStayInDir(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Set("../escape/key", []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), "/")
}

func TestMemoryStore(t *testing.T) {
	var m MemoryStore

	require.NoError(t, m.Set("k", []byte("v")))
	v, ok, err := m.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))

	m.FailWrites = true
	assert.ErrorIs(t, m.Set("k", []byte("w")), ErrWriteFailed)
	v, _, _ = m.Get("k")
	assert.Equal(t, "v", string(v))
}
