package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
	"github.com/btorressz/idxflow-orderflow/internal/domain/repository"
)

// MemoryStore is a StateStore that keeps copies of the committed records in memory.
// It is used when no state database is configured and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	global   *model.GlobalState
	accounts map[string]*model.UserAccount
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*model.UserAccount)}
}

var _ repository.StateStore = (*MemoryStore)(nil)

func (m *MemoryStore) LoadGlobalState(ctx context.Context) (*model.GlobalState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.global == nil {
		return nil, nil
	}
	return m.global.Clone(), nil
}

func (m *MemoryStore) LoadAccounts(ctx context.Context) ([]*model.UserAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*model.UserAccount, 0, len(m.accounts))
	for _, acct := range m.accounts {
		result = append(result, acct.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Owner < result[j].Owner })
	return result, nil
}

func (m *MemoryStore) Commit(ctx context.Context, global *model.GlobalState, account *model.UserAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.global = global.Clone()
	if account != nil {
		m.accounts[account.Owner] = account.Clone()
	}
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
