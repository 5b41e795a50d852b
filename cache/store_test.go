package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every Store implementation must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	key := fmt.Sprintf("https://api.eveonline.com/server/ServerStatus.xml.aspx?n=%d", time.Now().UnixNano())

	t.Run("miss", func(t *testing.T) {
		_, err := store.Get(ctx, key)
		require.ErrorIs(t, err, ErrNotFound)
		assert.False(t, store.Has(ctx, key))
	})

	validUntil := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	fetchedAt := validUntil.Add(-time.Hour)

	t.Run("put then get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, key, &Entry{
			Body:       []byte("<eveapi/>"),
			ValidUntil: validUntil,
			FetchedAt:  fetchedAt,
		}))
		assert.True(t, store.Has(ctx, key))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, key, got.Key)
		assert.Equal(t, []byte("<eveapi/>"), got.Body)
		assert.True(t, validUntil.Equal(got.ValidUntil), "valid until %v, got %v", validUntil, got.ValidUntil)
	})

	t.Run("put overwrites", func(t *testing.T) {
		later := validUntil.Add(time.Hour)
		require.NoError(t, store.Put(ctx, key, &Entry{Body: []byte("second"), ValidUntil: later, FetchedAt: validUntil}))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), got.Body)
		assert.True(t, later.Equal(got.ValidUntil))
	})

	t.Run("concurrent puts never tear", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				body := []byte(fmt.Sprintf("writer-%02d", i))
				assert.NoError(t, store.Put(ctx, key, &Entry{Body: body, ValidUntil: validUntil, FetchedAt: fetchedAt}))
			}(i)
		}
		wg.Wait()

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Regexp(t, `^writer-\d\d$`, string(got.Body))
	})
}

func TestEntryValid(t *testing.T) {
	until := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := &Entry{ValidUntil: until}

	assert.True(t, e.Valid(until.Add(-time.Nanosecond)))
	assert.False(t, e.Valid(until), "an entry is stale at exactly ValidUntil")
	assert.False(t, e.Valid(until.Add(time.Second)))
}

func TestHashKey(t *testing.T) {
	a := HashKey("https://api.eveonline.com/eve/AllianceList.xml.aspx")
	b := HashKey("https://api.eveonline.com/eve/AllianceList.xml.aspx")
	c := HashKey("https://api.eveonline.com/eve/AllianceList.xml.aspx?version=1")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
	assert.Regexp(t, `^[0-9a-f]+$`, a)
}
