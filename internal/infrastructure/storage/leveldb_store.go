package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
	"github.com/btorressz/idxflow-orderflow/internal/domain/repository"
)

var (
	globalKey     = []byte("global")
	accountPrefix = []byte("account:")
	balancePrefix = []byte("balance:")
	vaultPrefix   = []byte("vault:")
)

var (
	writeOpt = opt.WriteOptions{Sync: true}
	readOpt  = opt.ReadOptions{}
)

// LevelDBStore persists the protocol state in a level db: one record for the
// global state and one record per account, JSON encoded. It also keeps the
// ledger balances, one big endian uint64 per owner and per vault.
type LevelDBStore struct {
	db *leveldb.DB
}

var (
	_ repository.StateStore   = (*LevelDBStore)(nil)
	_ repository.BalanceStore = (*LevelDBStore)(nil)
)

// NewLevelDBStore opens the database at path, creating it when it does not exist.
func NewLevelDBStore(path string) (*LevelDBStore, error) {
	stg, err := lvlstorage.OpenFile(path, false)
	if err != nil {
		return nil, errors.Wrap(err, "open state db")
	}
	return openLevelDBStore(stg)
}

// NewMemLevelDBStore creates a level db store backed by memory.
func NewMemLevelDBStore() (*LevelDBStore, error) {
	return openLevelDBStore(lvlstorage.NewMemStorage())
}

func openLevelDBStore(stg lvlstorage.Storage) (*LevelDBStore, error) {
	db, err := leveldb.Open(stg, &opt.Options{
		OpenFilesCacheCapacity: 16,
		BlockCacheCapacity:     8 * opt.MiB,
		WriteBuffer:            4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open level db")
	}
	return &LevelDBStore{db: db}, nil
}

func prefixedKey(prefix []byte, name string) []byte {
	return append(append([]byte{}, prefix...), name...)
}

func accountKey(owner string) []byte {
	return prefixedKey(accountPrefix, owner)
}

func (s *LevelDBStore) LoadGlobalState(ctx context.Context) (*model.GlobalState, error) {
	data, err := s.db.Get(globalKey, &readOpt)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get global state")
	}

	var g model.GlobalState
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, errors.Wrap(err, "decode global state")
	}
	return &g, nil
}

func (s *LevelDBStore) LoadAccounts(ctx context.Context) ([]*model.UserAccount, error) {
	it := s.db.NewIterator(util.BytesPrefix(accountPrefix), &readOpt)
	defer it.Release()

	var result []*model.UserAccount
	for it.Next() {
		var acct model.UserAccount
		if err := json.Unmarshal(it.Value(), &acct); err != nil {
			return nil, errors.Wrapf(err, "decode account %q", it.Key()[len(accountPrefix):])
		}
		result = append(result, &acct)
	}
	if err := it.Error(); err != nil {
		return nil, errors.Wrap(err, "iterate accounts")
	}
	return result, nil
}

// Commit writes both records in one batch.
func (s *LevelDBStore) Commit(ctx context.Context, global *model.GlobalState, account *model.UserAccount) error {
	batch := new(leveldb.Batch)
	data, err := json.Marshal(global)
	if err != nil {
		return errors.Wrap(err, "encode global state")
	}
	batch.Put(globalKey, data)

	if account != nil {
		data, err := json.Marshal(account)
		if err != nil {
			return errors.Wrap(err, "encode account")
		}
		batch.Put(accountKey(account.Owner), data)
	}

	return errors.Wrap(s.db.Write(batch, &writeOpt), "write state batch")
}

func (s *LevelDBStore) LoadBalances(ctx context.Context) (map[string]uint64, map[model.Vault]uint64, error) {
	balances := make(map[string]uint64)
	if err := s.scanAmounts(balancePrefix, func(name string, amount uint64) {
		balances[name] = amount
	}); err != nil {
		return nil, nil, errors.Wrap(err, "load balances")
	}

	vaults := make(map[model.Vault]uint64)
	if err := s.scanAmounts(vaultPrefix, func(name string, amount uint64) {
		vaults[model.Vault(name)] = amount
	}); err != nil {
		return nil, nil, errors.Wrap(err, "load vaults")
	}
	return balances, vaults, nil
}

func (s *LevelDBStore) scanAmounts(prefix []byte, fn func(name string, amount uint64)) error {
	it := s.db.NewIterator(util.BytesPrefix(prefix), &readOpt)
	defer it.Release()

	for it.Next() {
		name := string(it.Key()[len(prefix):])
		if len(it.Value()) != 8 {
			return errors.Errorf("corrupt amount for %q", name)
		}
		fn(name, binary.BigEndian.Uint64(it.Value()))
	}
	return it.Error()
}

// SaveBalances writes the given entries in one batch.
func (s *LevelDBStore) SaveBalances(ctx context.Context, balances map[string]uint64, vaults map[model.Vault]uint64) error {
	batch := new(leveldb.Batch)
	for owner, amount := range balances {
		batch.Put(prefixedKey(balancePrefix, owner), binary.BigEndian.AppendUint64(nil, amount))
	}
	for vault, amount := range vaults {
		batch.Put(prefixedKey(vaultPrefix, string(vault)), binary.BigEndian.AppendUint64(nil, amount))
	}
	return errors.Wrap(s.db.Write(batch, &writeOpt), "write balance batch")
}

// Close close the level db.
// Later operations will all fail.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
