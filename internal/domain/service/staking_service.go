// Package service provides implementations of domain services that implement core business logic
// This package depends only on domain models and repository interfaces (not implementations)
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
	"github.com/btorressz/idxflow-orderflow/internal/domain/repository"
	"github.com/btorressz/idxflow-orderflow/internal/domain/useCases"
	"github.com/btorressz/idxflow-orderflow/internal/infrastructure/metrics"
	"github.com/btorressz/idxflow-orderflow/internal/lib/logger/sl"
)

const defaultTransferTimeout = 5 * time.Second

// Dependencies are the collaborators of a StakingService. Store, Ledger and
// Clock are required; the rest may be nil.
type Dependencies struct {
	Store           repository.StateStore
	Ledger          useCases.Ledger
	Clock           useCases.Clock
	Cache           repository.AccountCache
	Events          repository.EventPersistence
	Broadcaster     useCases.EventSink
	Metrics         *metrics.Metrics
	TransferTimeout time.Duration
}

// StakingService keeps the protocol state in memory, writes every change
// through to the state store and moves value through the ledger.
//
// Lock order is accountsMu, then an account's mutex, then globalMu.
// accountsMu is never held while waiting for another lock except by Audit,
// which takes globalMu first and only reads.
type StakingService struct {
	log             *slog.Logger
	store           repository.StateStore
	ledger          useCases.Ledger
	clock           useCases.Clock
	cache           repository.AccountCache
	events          repository.EventPersistence
	broadcaster     useCases.EventSink
	metrics         *metrics.Metrics
	transferTimeout time.Duration

	globalMu sync.Mutex
	global   *model.GlobalState

	accountsMu sync.RWMutex
	accounts   map[string]*accountSlot
}

// accountSlot serializes operations on one account. account is nil while
// the account is being created and is only replaced under globalMu.
type accountSlot struct {
	mu      sync.Mutex
	account *model.UserAccount
}

// NewStakingService creates a StakingService with the provided dependencies.
// Call Restore to load previously committed state.
func NewStakingService(log *slog.Logger, deps Dependencies) *StakingService {
	if log == nil {
		log = slog.Default()
	}
	timeout := deps.TransferTimeout
	if timeout <= 0 {
		timeout = defaultTransferTimeout
	}
	return &StakingService{
		log:             log.With(slog.String("component", "staking")),
		store:           deps.Store,
		ledger:          deps.Ledger,
		clock:           deps.Clock,
		cache:           deps.Cache,
		events:          deps.Events,
		broadcaster:     deps.Broadcaster,
		metrics:         deps.Metrics,
		transferTimeout: timeout,
		accounts:        make(map[string]*accountSlot),
	}
}

// Restore loads the global state and all accounts from the state store,
// replacing whatever is held in memory.
func (s *StakingService) Restore(ctx context.Context) error {
	global, err := s.store.LoadGlobalState(ctx)
	if err != nil {
		return fmt.Errorf("failed to load global state: %w", err)
	}
	accounts, err := s.store.LoadAccounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}

	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()

	s.global = global
	s.accounts = make(map[string]*accountSlot, len(accounts))
	for _, acct := range accounts {
		s.accounts[acct.Owner] = &accountSlot{account: acct}
	}
	if global != nil {
		s.metrics.SetGlobal(global.TotalStaked, global.CurrentEpoch)
	}
	s.log.Info("state restored", slog.Int("accounts", len(accounts)), slog.Bool("initialized", global != nil))
	return nil
}

func (s *StakingService) Initialize(ctx context.Context, params useCases.InitParams) (*model.GlobalState, error) {
	g, err := s.initialize(ctx, params)
	s.observe("initialize", params.Authority, err)
	return g, err
}

func (s *StakingService) initialize(ctx context.Context, params useCases.InitParams) (*model.GlobalState, error) {
	if params.EpochDuration <= 0 {
		return nil, fmt.Errorf("%w: epoch duration must be positive, got %s", ErrInvalidParameter, params.EpochDuration)
	}
	if params.Authority == "" {
		return nil, fmt.Errorf("%w: authority is required", ErrInvalidParameter)
	}

	s.globalMu.Lock()
	if s.global != nil {
		s.globalMu.Unlock()
		return nil, ErrAlreadyInitialized
	}
	now := s.clock.Now()
	g := &model.GlobalState{
		Authority:         params.Authority,
		RewardRate:        params.RewardRate,
		EpochDuration:     params.EpochDuration,
		MinVolume:         params.MinVolume,
		CurrentEpochStart: now,
		InitializedAt:     now,
	}
	if err := s.store.Commit(ctx, g, nil); err != nil {
		s.globalMu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrStateCommitFailed, err)
	}
	s.global = g
	s.metrics.SetGlobal(0, 0)
	s.globalMu.Unlock()

	s.log.Info("protocol initialized",
		slog.String("authority", g.Authority),
		slog.Uint64("reward_rate", g.RewardRate),
		slog.Duration("epoch_duration", g.EpochDuration),
		slog.Uint64("min_volume", g.MinVolume),
	)
	s.publish(ctx, model.EventInitialized, "", 0, g, nil)
	return g.Clone(), nil
}

// UpdateRewardRate changes the reward rate. Only the authority may call it.
func (s *StakingService) UpdateRewardRate(ctx context.Context, caller string, rate uint64) (*model.GlobalState, error) {
	g, err := s.commit(ctx, nil, nil, func(g *model.GlobalState) error {
		if caller != g.Authority {
			return ErrUnauthorized
		}
		g.RewardRate = rate
		return nil
	})
	s.observe("update_reward_rate", caller, err)
	if err != nil {
		return nil, err
	}
	s.log.Info("updated reward rate", slog.Uint64("reward_rate", rate))
	s.publish(ctx, model.EventRewardRateUpdated, caller, rate, g, nil)
	return g, nil
}

func (s *StakingService) CreateUserAccount(ctx context.Context, owner string) (*model.UserAccount, error) {
	acct, err := s.createUserAccount(ctx, owner)
	s.observe("create_user_account", owner, err)
	return acct, err
}

func (s *StakingService) createUserAccount(ctx context.Context, owner string) (*model.UserAccount, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidParameter)
	}
	if _, err := s.view(); err != nil {
		return nil, err
	}

	s.accountsMu.Lock()
	if _, exists := s.accounts[owner]; exists {
		s.accountsMu.Unlock()
		return nil, ErrAccountAlreadyExists
	}
	slot := &accountSlot{}
	slot.mu.Lock()
	s.accounts[owner] = slot
	s.accountsMu.Unlock()
	defer slot.mu.Unlock()

	acct := &model.UserAccount{
		Owner:     owner,
		FeeTier:   model.FeeTierBronze,
		CreatedAt: s.clock.Now(),
	}
	g, err := s.commit(ctx, slot, acct, func(g *model.GlobalState) error {
		// Nothing is claimable until the next epoch.
		acct.LastClaimEpoch = g.CurrentEpoch
		acct.VolumeEpoch = g.CurrentEpoch
		return nil
	})
	if err != nil {
		s.accountsMu.Lock()
		delete(s.accounts, owner)
		s.accountsMu.Unlock()
		return nil, err
	}

	s.log.Info("created user account", slog.String("owner", owner), slog.Uint64("epoch", g.CurrentEpoch))
	s.publish(ctx, model.EventAccountCreated, owner, 0, g, acct.Clone())
	return acct.Clone(), nil
}

// RecordSwapVolume credits amount to the owner's volume for the current epoch.
func (s *StakingService) RecordSwapVolume(ctx context.Context, owner string, amount uint64) (*model.UserAccount, error) {
	acct, err := s.recordSwapVolume(ctx, owner, amount)
	s.observe("record_swap_volume", owner, err)
	return acct, err
}

func (s *StakingService) recordSwapVolume(ctx context.Context, owner string, amount uint64) (*model.UserAccount, error) {
	if amount == 0 {
		return nil, fmt.Errorf("%w: volume must be positive", ErrInvalidParameter)
	}
	slot, err := s.lockAccount(owner)
	if err != nil {
		return nil, err
	}
	defer slot.mu.Unlock()

	acct := slot.account.Clone()
	g, err := s.commit(ctx, slot, acct, func(g *model.GlobalState) error {
		syncAccountEpoch(acct, g.CurrentEpoch)
		volume, err := addChecked(acct.RecordedVolume, amount)
		if err != nil {
			return fmt.Errorf("recorded volume: %w", err)
		}
		acct.RecordedVolume = volume
		acct.TotalVolume = saturatingAdd(acct.TotalVolume, amount)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("recorded swap volume",
		slog.String("owner", owner),
		slog.Uint64("volume", amount),
		slog.Uint64("epoch_volume", acct.RecordedVolume),
	)
	s.publish(ctx, model.EventVolumeRecorded, owner, amount, g, acct.Clone())
	return acct.Clone(), nil
}

// StakeTokens moves amount from the owner into the staking vault and credits it.
func (s *StakingService) StakeTokens(ctx context.Context, owner string, amount uint64) (*model.UserAccount, error) {
	acct, err := s.stakeTokens(ctx, owner, amount)
	s.observe("stake_tokens", owner, err)
	return acct, err
}

func (s *StakingService) stakeTokens(ctx context.Context, owner string, amount uint64) (*model.UserAccount, error) {
	if amount == 0 {
		return nil, fmt.Errorf("%w: stake amount must be positive", ErrInvalidParameter)
	}
	slot, err := s.lockAccount(owner)
	if err != nil {
		return nil, err
	}
	defer slot.mu.Unlock()

	view, err := s.view()
	if err != nil {
		return nil, err
	}
	acct := slot.account.Clone()
	if acct.Staked, err = addChecked(acct.Staked, amount); err != nil {
		return nil, fmt.Errorf("staked balance: %w", err)
	}
	if _, err := addChecked(view.TotalStaked, amount); err != nil {
		return nil, fmt.Errorf("total staked: %w", err)
	}
	acct.FeeTier = model.FeeTierFor(acct.Staked)

	err = s.transfer(ctx, model.StakingVault, "in", func(ctx context.Context) error {
		return s.ledger.TransferToVault(ctx, owner, model.StakingVault, amount)
	})
	if err != nil {
		return nil, err
	}

	g, err := s.commit(ctx, slot, acct, func(g *model.GlobalState) error {
		syncAccountEpoch(acct, g.CurrentEpoch)
		total, err := addChecked(g.TotalStaked, amount)
		if err != nil {
			return fmt.Errorf("total staked: %w", err)
		}
		g.TotalStaked = total
		return nil
	})
	if err != nil {
		return nil, s.compensate(ctx, err, model.StakingVault, "out", func(ctx context.Context) error {
			return s.ledger.TransferFromVault(ctx, model.StakingVault, owner, amount)
		})
	}

	s.log.Info("staked tokens",
		slog.String("owner", owner),
		slog.Uint64("amount", amount),
		slog.String("fee_tier", string(acct.FeeTier)),
	)
	s.publish(ctx, model.EventStaked, owner, amount, g, acct.Clone())
	return acct.Clone(), nil
}

// UnstakeTokens returns amount from the staking vault to the owner. The stake
// is checked before the ledger is touched so that a withdrawal can never be
// paid from other users' stake.
func (s *StakingService) UnstakeTokens(ctx context.Context, owner string, amount uint64) (*model.UserAccount, error) {
	acct, err := s.unstakeTokens(ctx, owner, amount)
	s.observe("unstake_tokens", owner, err)
	return acct, err
}

func (s *StakingService) unstakeTokens(ctx context.Context, owner string, amount uint64) (*model.UserAccount, error) {
	if amount == 0 {
		return nil, fmt.Errorf("%w: unstake amount must be positive", ErrInvalidParameter)
	}
	slot, err := s.lockAccount(owner)
	if err != nil {
		return nil, err
	}
	defer slot.mu.Unlock()

	acct := slot.account.Clone()
	if acct.Staked < amount {
		return nil, fmt.Errorf("%w: staked %d, requested %d", ErrInsufficientStake, acct.Staked, amount)
	}
	acct.Staked -= amount
	acct.FeeTier = model.FeeTierFor(acct.Staked)

	err = s.transfer(ctx, model.StakingVault, "out", func(ctx context.Context) error {
		return s.ledger.TransferFromVault(ctx, model.StakingVault, owner, amount)
	})
	if err != nil {
		return nil, err
	}

	g, err := s.commit(ctx, slot, acct, func(g *model.GlobalState) error {
		syncAccountEpoch(acct, g.CurrentEpoch)
		if g.TotalStaked < amount {
			return fmt.Errorf("total staked %d below unstake amount %d: %w", g.TotalStaked, amount, ErrArithmeticOverflow)
		}
		g.TotalStaked -= amount
		return nil
	})
	if err != nil {
		return nil, s.compensate(ctx, err, model.StakingVault, "in", func(ctx context.Context) error {
			return s.ledger.TransferToVault(ctx, owner, model.StakingVault, amount)
		})
	}

	s.log.Info("unstaked tokens",
		slog.String("owner", owner),
		slog.Uint64("amount", amount),
		slog.String("fee_tier", string(acct.FeeTier)),
	)
	s.publish(ctx, model.EventUnstaked, owner, amount, g, acct.Clone())
	return acct.Clone(), nil
}

// ClaimRewards pays the owner's entitlement from the reward vault and returns
// the amount paid. An account can claim at most once per epoch.
func (s *StakingService) ClaimRewards(ctx context.Context, owner string) (uint64, error) {
	reward, err := s.claimRewards(ctx, owner)
	s.observe("claim_rewards", owner, err)
	return reward, err
}

func (s *StakingService) claimRewards(ctx context.Context, owner string) (uint64, error) {
	slot, err := s.lockAccount(owner)
	if err != nil {
		return 0, err
	}
	defer slot.mu.Unlock()

	view, err := s.view()
	if err != nil {
		return 0, err
	}
	acct := slot.account.Clone()
	syncAccountEpoch(acct, view.CurrentEpoch)

	if acct.EligibleVolume() < view.MinVolume {
		return 0, fmt.Errorf("%w: volume %d, minimum %d", ErrNotEligible, acct.EligibleVolume(), view.MinVolume)
	}
	if acct.LastClaimEpoch >= view.CurrentEpoch {
		return 0, fmt.Errorf("%w: epoch %d", ErrAlreadyClaimed, view.CurrentEpoch)
	}

	reward := Entitlement(acct.Staked, view.RewardRate, EpochsElapsed(view.CurrentEpoch, acct.LastClaimEpoch))
	acct.LastClaimEpoch = view.CurrentEpoch
	acct.TotalClaimed = saturatingAdd(acct.TotalClaimed, reward)

	if reward > 0 {
		err = s.transfer(ctx, model.RewardVault, "out", func(ctx context.Context) error {
			return s.ledger.TransferFromVault(ctx, model.RewardVault, owner, reward)
		})
		if err != nil {
			return 0, err
		}
	}

	g, err := s.commit(ctx, slot, acct, func(g *model.GlobalState) error {
		syncAccountEpoch(acct, g.CurrentEpoch)
		g.TotalDistributed = saturatingAdd(g.TotalDistributed, reward)
		return nil
	})
	if err != nil {
		if reward == 0 {
			return 0, err
		}
		return 0, s.compensate(ctx, err, model.RewardVault, "in", func(ctx context.Context) error {
			return s.ledger.TransferToVault(ctx, owner, model.RewardVault, reward)
		})
	}

	s.metrics.AddRewardsPaid(reward)
	s.log.Info("claimed rewards",
		slog.String("owner", owner),
		slog.Uint64("reward", reward),
		slog.Uint64("epoch", acct.LastClaimEpoch),
	)
	s.publish(ctx, model.EventRewardsClaimed, owner, reward, g, acct.Clone())
	return reward, nil
}

// GlobalState returns the global state as of now. Rollover is projected on
// the copy and not committed.
func (s *StakingService) GlobalState(ctx context.Context) (*model.GlobalState, error) {
	return s.view()
}

// Account returns the owner's account as of now, with the volume window
// projected onto the current epoch.
func (s *StakingService) Account(ctx context.Context, owner string) (*model.UserAccount, error) {
	acct, _, err := s.projectAccount(owner)
	return acct, err
}

// PendingReward is the amount ClaimRewards would pay if the owner were eligible.
func (s *StakingService) PendingReward(ctx context.Context, owner string) (uint64, error) {
	acct, g, err := s.projectAccount(owner)
	if err != nil {
		return 0, err
	}
	return Entitlement(acct.Staked, g.RewardRate, EpochsElapsed(g.CurrentEpoch, acct.LastClaimEpoch)), nil
}

// FeeDiscount returns the swap fee discount in percent earned by the owner's tier.
func (s *StakingService) FeeDiscount(ctx context.Context, owner string) (uint16, error) {
	acct, _, err := s.projectAccount(owner)
	if err != nil {
		return 0, err
	}
	return acct.FeeTier.Discount(), nil
}

// Audit verifies that the sum of all staked balances equals the total staked.
func (s *StakingService) Audit(ctx context.Context) error {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	if s.global == nil {
		return ErrNotInitialized
	}

	s.accountsMu.RLock()
	defer s.accountsMu.RUnlock()

	var sum uint256.Int
	for _, slot := range s.accounts {
		if slot.account != nil {
			sum.Add(&sum, uint256.NewInt(slot.account.Staked))
		}
	}
	if !sum.IsUint64() || sum.Uint64() != s.global.TotalStaked {
		return fmt.Errorf("sum of stakes %s does not match total staked %d", sum.Dec(), s.global.TotalStaked)
	}
	return nil
}

func (s *StakingService) projectAccount(owner string) (*model.UserAccount, *model.GlobalState, error) {
	slot, err := s.lockAccount(owner)
	if err != nil {
		return nil, nil, err
	}
	defer slot.mu.Unlock()

	g, err := s.view()
	if err != nil {
		return nil, nil, err
	}
	acct := slot.account.Clone()
	syncAccountEpoch(acct, g.CurrentEpoch)
	return acct, g, nil
}

// view returns a copy of the global state rolled forward to now.
func (s *StakingService) view() (*model.GlobalState, error) {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	if s.global == nil {
		return nil, ErrNotInitialized
	}
	g := s.global.Clone()
	advanceEpoch(g, s.clock.Now())
	return g, nil
}

// lockAccount returns the owner's slot with its mutex held.
func (s *StakingService) lockAccount(owner string) (*accountSlot, error) {
	s.accountsMu.RLock()
	slot, ok := s.accounts[owner]
	s.accountsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, owner)
	}

	slot.mu.Lock()
	if slot.account == nil {
		slot.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, owner)
	}
	return slot, nil
}

// commit rolls the live global state forward, applies fn to a copy of it,
// persists the copy together with acct and only then publishes both in memory.
// The returned state is a copy.
func (s *StakingService) commit(ctx context.Context, slot *accountSlot, acct *model.UserAccount, fn func(g *model.GlobalState) error) (*model.GlobalState, error) {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	if s.global == nil {
		return nil, ErrNotInitialized
	}

	g := s.global.Clone()
	if crossed := advanceEpoch(g, s.clock.Now()); crossed > 0 {
		s.log.Debug("epoch rollover", slog.Uint64("epoch", g.CurrentEpoch), slog.Uint64("crossed", crossed))
	}
	if fn != nil {
		if err := fn(g); err != nil {
			return nil, err
		}
	}
	if err := s.store.Commit(ctx, g, acct); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStateCommitFailed, err)
	}

	s.global = g
	if slot != nil {
		slot.account = acct
	}
	s.metrics.SetGlobal(g.TotalStaked, g.CurrentEpoch)
	return g.Clone(), nil
}

// transfer runs one ledger call under the transfer timeout.
func (s *StakingService) transfer(ctx context.Context, vault model.Vault, direction string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.transferTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	s.metrics.ObserveTransfer(string(vault), direction, time.Since(start))
	if err != nil {
		return fmt.Errorf("%w: %s %s vault: %w", ErrExternalTransferFailed, direction, vault, err)
	}
	return nil
}

// compensate reverses a transfer whose state change could not be committed.
func (s *StakingService) compensate(ctx context.Context, commitErr error, vault model.Vault, direction string, fn func(ctx context.Context) error) error {
	if err := s.transfer(context.WithoutCancel(ctx), vault, direction, fn); err != nil {
		s.log.Error("compensating transfer failed, ledger and state diverge",
			slog.String("vault", string(vault)),
			slog.String("direction", direction),
			sl.Err(err),
		)
		return errors.Join(commitErr, err)
	}
	s.log.Warn("reverted transfer after failed commit", slog.String("vault", string(vault)), sl.Err(commitErr))
	return commitErr
}

// publish fans a committed event out to the cache, the audit log and the broadcaster.
// Failures are logged; the state change itself is already durable.
func (s *StakingService) publish(ctx context.Context, kind model.EventKind, owner string, amount uint64, g *model.GlobalState, acct *model.UserAccount) {
	event := &model.LedgerEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Owner:     owner,
		Amount:    amount,
		Epoch:     g.CurrentEpoch,
		Timestamp: s.clock.Now(),
	}

	if s.cache != nil {
		if err := s.cache.SaveGlobalState(ctx, g); err != nil {
			s.log.Warn("failed to cache global state", sl.Err(err))
		}
		if acct != nil {
			if err := s.cache.SaveAccount(ctx, acct); err != nil {
				s.log.Warn("failed to cache account", slog.String("owner", acct.Owner), sl.Err(err))
			}
		}
	}
	if s.events != nil {
		if err := s.events.SaveEvent(ctx, event); err != nil {
			s.log.Warn("failed to persist ledger event", slog.String("kind", string(kind)), sl.Err(err))
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastEvent(event)
	}
}

func (s *StakingService) observe(op, who string, err error) {
	kind := ErrorKind(err)
	s.metrics.ObserveOperation(op, kind)
	if err == nil {
		return
	}

	switch kind {
	case "internal", "external_transfer_failed", "state_commit_failed", "arithmetic_overflow":
		s.log.Error("operation failed", slog.String("op", op), slog.String("who", who), sl.Err(err))
	default:
		s.log.Debug("operation rejected", slog.String("op", op), slog.String("who", who), sl.Err(err))
	}
}

// Ensure interface compliance
var _ useCases.StakingService = (*StakingService)(nil)
