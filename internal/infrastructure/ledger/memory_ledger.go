// Package ledger provides an in-process token ledger with user balances and
// protocol vaults. It stands in for the hosting chain's token program when
// the service runs standalone.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
	"github.com/btorressz/idxflow-orderflow/internal/domain/repository"
	"github.com/btorressz/idxflow-orderflow/internal/domain/useCases"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid transfer amount")
	ErrBalanceOverflow   = errors.New("balance overflow")
)

// MemoryLedger keeps balances in memory. Every change is applied under a
// single mutex, so it either fully happens or not at all. With a balance
// store attached, every change is written through before it is visible.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]uint64
	vaults   map[model.Vault]uint64
	store    repository.BalanceStore
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]uint64),
		vaults:   make(map[model.Vault]uint64),
	}
}

// NewPersistentLedger loads the balances held in store and writes every
// later change back to it.
func NewPersistentLedger(ctx context.Context, store repository.BalanceStore) (*MemoryLedger, error) {
	balances, vaults, err := store.LoadBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger balances: %w", err)
	}
	return &MemoryLedger{balances: balances, vaults: vaults, store: store}, nil
}

// Empty reports whether the ledger holds no balance records at all.
func (l *MemoryLedger) Empty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.balances) == 0 && len(l.vaults) == 0
}

// Mint credits amount to owner's balance.
func (l *MemoryLedger) Mint(ctx context.Context, owner string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[owner] > math.MaxUint64-amount {
		return fmt.Errorf("%w: minting %d to %s", ErrBalanceOverflow, amount, owner)
	}
	return l.apply(ctx, owner, l.balances[owner]+amount, "", 0)
}

// FundVault credits amount to a protocol vault.
func (l *MemoryLedger) FundVault(ctx context.Context, vault model.Vault, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.vaults[vault] > math.MaxUint64-amount {
		return fmt.Errorf("%w: funding %s vault with %d", ErrBalanceOverflow, vault, amount)
	}
	return l.apply(ctx, "", 0, vault, l.vaults[vault]+amount)
}

func (l *MemoryLedger) Balance(owner string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[owner]
}

func (l *MemoryLedger) VaultBalance(vault model.Vault) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.vaults[vault]
}

func (l *MemoryLedger) TransferToVault(ctx context.Context, from string, vault model.Vault, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[from] < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, from, l.balances[from], amount)
	}
	if l.vaults[vault] > math.MaxUint64-amount {
		return fmt.Errorf("%w: %s vault", ErrBalanceOverflow, vault)
	}
	return l.apply(ctx, from, l.balances[from]-amount, vault, l.vaults[vault]+amount)
}

func (l *MemoryLedger) TransferFromVault(ctx context.Context, vault model.Vault, to string, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.vaults[vault] < amount {
		return fmt.Errorf("%w: %s vault holds %d, needs %d", ErrInsufficientFunds, vault, l.vaults[vault], amount)
	}
	if l.balances[to] > math.MaxUint64-amount {
		return fmt.Errorf("%w: %s balance", ErrBalanceOverflow, to)
	}
	return l.apply(ctx, to, l.balances[to]+amount, vault, l.vaults[vault]-amount)
}

// apply sets the new balance of owner and of vault; an empty owner or vault
// is left alone. l.mu must be held.
func (l *MemoryLedger) apply(ctx context.Context, owner string, balance uint64, vault model.Vault, vaultBalance uint64) error {
	if l.store != nil {
		var balances map[string]uint64
		var vaults map[model.Vault]uint64
		if owner != "" {
			balances = map[string]uint64{owner: balance}
		}
		if vault != "" {
			vaults = map[model.Vault]uint64{vault: vaultBalance}
		}
		if err := l.store.SaveBalances(ctx, balances, vaults); err != nil {
			return fmt.Errorf("failed to persist balances: %w", err)
		}
	}

	if owner != "" {
		l.balances[owner] = balance
	}
	if vault != "" {
		l.vaults[vault] = vaultBalance
	}
	return nil
}

// Ensure interface compliance
var _ useCases.Ledger = (*MemoryLedger)(nil)
