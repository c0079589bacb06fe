package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rentchain/rental-client/internal/lib"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

func newRedisRecords(t *testing.T) (*Records, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), "redis://"+mr.Addr(), "rental:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewRecords(store, time.Minute, lib.NewTestLogger()), mr
}

func TestReadThroughRedis(t *testing.T) {
	records, mr := newRedisRecords(t)
	ctx := context.Background()

	loads := 0
	load := func(ctx context.Context) (record, error) {
		loads++
		return record{ID: 3, Name: "Loft"}, nil
	}

	got, err := ReadThrough(ctx, records, "property:3", load)
	require.NoError(t, err)
	require.Equal(t, record{ID: 3, Name: "Loft"}, got)

	got, err = ReadThrough(ctx, records, "property:3", load)
	require.NoError(t, err)
	require.Equal(t, "Loft", got.Name)
	require.Equal(t, 1, loads)

	require.True(t, mr.Exists("rental:property:3"))
	require.Equal(t, time.Minute, mr.TTL("rental:property:3"))

	mr.FastForward(2 * time.Minute)
	_, err = ReadThrough(ctx, records, "property:3", load)
	require.NoError(t, err)
	require.Equal(t, 2, loads)
}

func TestReadThroughDoesNotCacheErrors(t *testing.T) {
	records := NewRecords(NewMemoryStore(), time.Minute, lib.NewTestLogger())
	ctx := context.Background()

	_, err := ReadThrough(ctx, records, "agreement:1", func(ctx context.Context) (record, error) {
		return record{}, errors.New("rpc down")
	})
	require.Error(t, err)

	var dst record
	require.False(t, records.Lookup(ctx, "agreement:1", &dst))
}

func TestRecordsSurviveRedisOutage(t *testing.T) {
	records, mr := newRedisRecords(t)
	mr.Close()

	got, err := ReadThrough(context.Background(), records, "property:1", func(ctx context.Context) (record, error) {
		return record{ID: 1}, nil
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.ID)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Second))
	v, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)

	now = now.Add(time.Second)
	_, err = store.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)

	records := NewRecords(store, 0, lib.NewTestLogger())
	records.Put(ctx, "p", record{ID: 9})
	records.Invalidate(ctx, "p")
	var dst record
	require.False(t, records.Lookup(ctx, "p", &dst))
}
