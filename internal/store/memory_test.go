package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func TestMemoryStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "a", item{Name: "x", Items: []string{"1"}}, time.Minute))

	var got item
	found, err := s.Get(ctx, "a", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "x", got.Name)

	// mutation of a read copy must not leak back
	got.Items[0] = "changed"
	var again item
	_, _ = s.Get(ctx, "a", &again)
	assert.Equal(t, "1", again.Items[0])

	require.NoError(t, s.Delete(ctx, "a"))
	found, err = s.Get(ctx, "a", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore().WithClock(func() time.Time { return now })

	require.NoError(t, s.Set(ctx, "session:U1", item{Name: "a"}, time.Hour))
	require.NoError(t, s.Set(ctx, "session:U2", item{Name: "b"}, 0))

	now = now.Add(59 * time.Minute)
	keys, _ := s.Keys(ctx, "session:")
	assert.Equal(t, []string{"session:U1", "session:U2"}, keys)

	now = now.Add(time.Minute)
	var got item
	found, _ := s.Get(ctx, "session:U1", &got)
	assert.False(t, found)

	keys, _ = s.Keys(ctx, "session:")
	assert.Equal(t, []string{"session:U2"}, keys)
	assert.Equal(t, 1, s.Sweep())
}
