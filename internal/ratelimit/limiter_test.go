package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/knowledge-sync/internal/destination/memory"
	"github.com/JakeFAU/knowledge-sync/internal/ingest"
)

func TestCreatorPacesWrites(t *testing.T) {
	t.Parallel()

	store := memory.NewStore(0)
	c := NewCreator(store, Config{PerSecond: 20, Burst: 1}, nil)

	start := time.Now()
	for _, id := range []string{"a", "b", "c"} {
		_, err := c.CreateRecord(context.Background(), ingest.Record{ObjectID: id})
		require.NoError(t, err)
	}
	// Two waits of 50ms after the initial token.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Len(t, store.Records(), 3)
}

func TestCreatorUnlimited(t *testing.T) {
	t.Parallel()

	store := memory.NewStore(0)
	c := NewCreator(store, Config{}, nil)
	for range 50 {
		_, err := c.CreateRecord(context.Background(), ingest.Record{})
		require.NoError(t, err)
	}
	assert.Len(t, store.Records(), 50)
}

func TestCreatorHonorsContext(t *testing.T) {
	t.Parallel()

	store := memory.NewStore(0)
	c := NewCreator(store, Config{PerSecond: 0.001, Burst: 1}, nil)
	_, err := c.CreateRecord(context.Background(), ingest.Record{ObjectID: "first"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.CreateRecord(ctx, ingest.Record{ObjectID: "second"})
	require.Error(t, err)
	assert.Len(t, store.Records(), 1)
}
