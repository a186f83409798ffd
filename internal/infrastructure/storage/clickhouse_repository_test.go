package storage_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
	"github.com/btorressz/idxflow-orderflow/internal/infrastructure/storage"
)

func TestClickHouseRepository(t *testing.T) {
	addr := os.Getenv("CLICKHOUSE_ADDR")
	if addr == "" {
		t.Skip("Skipping ClickHouse test - requires live ClickHouse instance (set CLICKHOUSE_ADDR)")
	}

	repo, err := storage.NewClickHouseRepository(storage.ClickHouseConfig{
		Addr:     addr,
		Username: os.Getenv("CLICKHOUSE_USERNAME"),
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		Timeout:  10,
	})
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	swap := &model.Swap{
		ID:        uuid.NewString(),
		Who:       "test-user",
		Token:     "TEST",
		Amount:    1,
		Volume:    1000,
		Side:      "buy",
		Timestamp: time.Now(),
	}
	require.NoError(t, repo.SaveSwap(ctx, swap))

	event := &model.LedgerEvent{
		ID:        uuid.NewString(),
		Kind:      model.EventStaked,
		Owner:     "test-user",
		Amount:    2_000_000_000,
		Epoch:     1,
		Timestamp: time.Now(),
	}
	require.NoError(t, repo.SaveEvent(ctx, event))

	// async inserts are flushed by the server in the background
	time.Sleep(2 * time.Second)

	since := time.Now().Add(-1 * time.Hour)
	swaps, err := repo.GetSwapsSince(ctx, since.Unix())
	require.NoError(t, err)
	found := false
	for _, s := range swaps {
		if s.ID == swap.ID {
			found = true
			assert.Equal(t, swap.Volume, s.Volume)
			break
		}
	}
	assert.True(t, found, "saved swap not found in retrieved swaps")

	events, err := repo.GetEventsSince(ctx, since)
	require.NoError(t, err)
	found = false
	for _, e := range events {
		if e.ID == event.ID {
			found = true
			assert.Equal(t, model.EventStaked, e.Kind)
			break
		}
	}
	assert.True(t, found, "saved event not found in retrieved events")
}
