package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/chatcart/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryCache(t *testing.T) *MemoryCache {
	t.Helper()
	c := NewMemoryCache(time.Minute)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		value interface{}
		want  interface{}
	}{
		{"string", "hello", "hello"},
		{"number becomes float64", 42, float64(42)},
		{
			"struct becomes map",
			domain.StoreContext{Name: "Demo", Currency: "EUR"},
			map[string]interface{}{"name": "Demo", "currency": "EUR", "email": ""},
		},
		{
			"slice becomes generic slice",
			[]string{"a", "b"},
			[]interface{}{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestMemoryCache(t)

			require.NoError(t, c.Set(ctx, "key", tt.value, time.Minute))

			got, err := c.Get(ctx, "key")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMemoryCache_Set_Unmarshalable(t *testing.T) {
	c := newTestMemoryCache(t)

	err := c.Set(context.Background(), "key", make(chan int), time.Minute)

	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_Miss(t *testing.T) {
	c := newTestMemoryCache(t)

	_, err := c.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", "value", time.Millisecond))
	time.Sleep(10 * time.Millisecond)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)

	exists, err := c.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, exists)

	c.removeExpired(time.Now())
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_DeleteAndExists(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", "value", time.Minute))

	exists, err := c.Exists(ctx, "key")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, c.Delete(ctx, "key"))
	require.NoError(t, c.Delete(ctx, "key"))

	exists, err = c.Exists(ctx, "key")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryCache_CloseTwice(t *testing.T) {
	c := NewMemoryCache(0)

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", id)
			assert.NoError(t, c.Set(ctx, key, id, time.Minute))
			_, err := c.Get(ctx, key)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, c.Len())
}
