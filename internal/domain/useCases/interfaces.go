package useCases

import (
	"context"
	"net/http"
	"time"

	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
)

// InitParams are the protocol parameters fixed at initialization.
type InitParams struct {
	Authority     string
	RewardRate    uint64
	EpochDuration time.Duration
	MinVolume     uint64
}

// StakingService defines the staking and rewards operations.
type StakingService interface {
	Initialize(ctx context.Context, params InitParams) (*model.GlobalState, error)
	UpdateRewardRate(ctx context.Context, caller string, rate uint64) (*model.GlobalState, error)
	CreateUserAccount(ctx context.Context, owner string) (*model.UserAccount, error)
	RecordSwapVolume(ctx context.Context, owner string, amount uint64) (*model.UserAccount, error)
	StakeTokens(ctx context.Context, owner string, amount uint64) (*model.UserAccount, error)
	UnstakeTokens(ctx context.Context, owner string, amount uint64) (*model.UserAccount, error)
	ClaimRewards(ctx context.Context, owner string) (uint64, error)

	GlobalState(ctx context.Context) (*model.GlobalState, error)
	Account(ctx context.Context, owner string) (*model.UserAccount, error)
	PendingReward(ctx context.Context, owner string) (uint64, error)
	FeeDiscount(ctx context.Context, owner string) (uint16, error)
}

// History serves archived ledger events and swaps, oldest first.
type History interface {
	EventsSince(ctx context.Context, since time.Time) ([]*model.LedgerEvent, error)
	SwapsSince(ctx context.Context, since time.Time) ([]*model.Swap, error)
}

// Ledger moves value between user balances and protocol vaults.
// Each call is atomic and must return promptly once ctx is done.
type Ledger interface {
	TransferToVault(ctx context.Context, from string, vault model.Vault, amount uint64) error
	TransferFromVault(ctx context.Context, vault model.Vault, to string, amount uint64) error
}

// Clock is the time source of the protocol.
type Clock interface {
	Now() time.Time
}

// EventSink receives ledger events after they are committed.
type EventSink interface {
	BroadcastEvent(event *model.LedgerEvent)
}

// Broadcaster defines an interface for pushing ledger events to WebSocket/API layers.
type Broadcaster interface {
	EventSink
	Handler() http.HandlerFunc
}
