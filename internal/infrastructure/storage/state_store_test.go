package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
	"github.com/btorressz/idxflow-orderflow/internal/domain/repository"
	"github.com/btorressz/idxflow-orderflow/internal/infrastructure/storage"
)

func TestStateStores(t *testing.T) {
	memLvl, err := storage.NewMemLevelDBStore()
	require.NoError(t, err)

	stores := map[string]repository.StateStore{
		"memory":      storage.NewMemoryStore(),
		"leveldb-mem": memLvl,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			exerciseStateStore(t, store)
		})
	}
}

func TestLevelDBStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state")

	store, err := storage.NewLevelDBStore(path)
	require.NoError(t, err)

	global := &model.GlobalState{Authority: "admin", EpochDuration: time.Minute, TotalStaked: 7}
	require.NoError(t, store.Commit(ctx, global, &model.UserAccount{Owner: "alice", Staked: 7}))
	require.NoError(t, store.Close())

	store, err = storage.NewLevelDBStore(path)
	require.NoError(t, err)
	defer store.Close()

	loaded, err := store.LoadGlobalState(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), loaded.TotalStaked)

	accounts, err := store.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "alice", accounts[0].Owner)
}

func exerciseStateStore(t *testing.T, store repository.StateStore) {
	ctx := context.Background()

	global, err := store.LoadGlobalState(ctx)
	require.NoError(t, err)
	assert.Nil(t, global)

	start := time.Unix(1_700_000_000, 0).UTC()
	g := &model.GlobalState{
		Authority:         "admin",
		RewardRate:        100,
		EpochDuration:     time.Minute,
		MinVolume:         5000,
		CurrentEpochStart: start,
	}
	require.NoError(t, store.Commit(ctx, g, nil))

	g.TotalStaked = 10
	require.NoError(t, store.Commit(ctx, g, &model.UserAccount{Owner: "bob", Staked: 4, FeeTier: model.FeeTierBronze}))
	require.NoError(t, store.Commit(ctx, g, &model.UserAccount{Owner: "alice", Staked: 6, FeeTier: model.FeeTierBronze}))

	// mutating the committed value must not leak into the store
	g.TotalStaked = 99

	loaded, err := store.LoadGlobalState(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), loaded.TotalStaked)
	assert.Equal(t, time.Minute, loaded.EpochDuration)
	assert.True(t, start.Equal(loaded.CurrentEpochStart))

	accounts, err := store.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "alice", accounts[0].Owner)
	assert.Equal(t, uint64(6), accounts[0].Staked)
	assert.Equal(t, "bob", accounts[1].Owner)
}
