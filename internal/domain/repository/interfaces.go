// Package repository defines all the repository interfaces used by domain services
// Following the dependency inversion principle, domain logic depends on these interfaces,
// and infrastructure implementations provide concrete implementations
package repository

import (
	"context"
	"time"

	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
)

// StateStore is the durable home of the protocol state.
// Implementations must apply Commit atomically: either both records are
// written or neither is.
type StateStore interface {
	// LoadGlobalState returns nil and no error when the protocol was never initialized
	LoadGlobalState(ctx context.Context) (*model.GlobalState, error)

	// LoadAccounts returns every persisted user account
	LoadAccounts(ctx context.Context) ([]*model.UserAccount, error)

	// Commit persists the global state and, when non-nil, one user account
	Commit(ctx context.Context, global *model.GlobalState, account *model.UserAccount) error

	Close() error
}

// BalanceStore is the durable home of ledger balances.
type BalanceStore interface {
	// LoadBalances returns every persisted user balance and vault balance
	LoadBalances(ctx context.Context) (map[string]uint64, map[model.Vault]uint64, error)

	// SaveBalances writes the given entries atomically, leaving others untouched
	SaveBalances(ctx context.Context, balances map[string]uint64, vaults map[model.Vault]uint64) error
}

// AccountCache defines the interface for publishing account views
// It is written through after every commit so other services can read
// the latest state without calling this one
// Implementations should prioritize speed over durability
type AccountCache interface {
	SaveAccount(ctx context.Context, account *model.UserAccount) error
	SaveGlobalState(ctx context.Context, global *model.GlobalState) error
}

// EventPersistence defines the interface for the ledger event audit log
// Implementations should prioritize durability and consistency over speed
type EventPersistence interface {
	// SaveEvent persists a committed ledger event
	SaveEvent(ctx context.Context, event *model.LedgerEvent) error

	// GetEventsSince retrieves ledger events since the given time, oldest first
	GetEventsSince(ctx context.Context, since time.Time) ([]*model.LedgerEvent, error)
}

// SwapPersistence defines the interface for persistent swap storage
// This is used for storing individual swaps for historical analysis
// and audit purposes
type SwapPersistence interface {
	// SaveSwap persists a swap to durable storage
	SaveSwap(ctx context.Context, swap *model.Swap) error

	// GetSwapsSince retrieves swaps since the given timestamp
	GetSwapsSince(ctx context.Context, since int64) ([]*model.Swap, error)
}
