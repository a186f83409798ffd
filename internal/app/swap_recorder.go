package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru"

	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
	"github.com/btorressz/idxflow-orderflow/internal/domain/repository"
	"github.com/btorressz/idxflow-orderflow/internal/domain/service"
	"github.com/btorressz/idxflow-orderflow/internal/domain/useCases"
	"github.com/btorressz/idxflow-orderflow/internal/infrastructure/metrics"
	"github.com/btorressz/idxflow-orderflow/internal/lib/logger/sl"
)

// ErrContextCancelled is returned when the context is cancelled during processing
var ErrContextCancelled = errors.New("context cancelled during processing")

const defaultDedupCacheSize = 100_000

// Swap outcomes reported to metrics.
const (
	outcomeRecorded  = "recorded"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

// SwapRecorder turns swaps from the volume feed into RecordSwapVolume calls.
// Traders seen for the first time get an account on demand. It is not safe
// for concurrent use; each processor owns one.
type SwapRecorder struct {
	log     *slog.Logger
	staking useCases.StakingService
	archive repository.SwapPersistence
	metrics *metrics.Metrics
	seen    *lru.Cache
}

// NewSwapRecorder creates a recorder that remembers the last dedupSize swap IDs.
// archive and m may be nil.
func NewSwapRecorder(log *slog.Logger, staking useCases.StakingService, archive repository.SwapPersistence, m *metrics.Metrics, dedupSize int) (*SwapRecorder, error) {
	if dedupSize <= 0 {
		dedupSize = defaultDedupCacheSize
	}
	seen, err := lru.New(dedupSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create dedup cache: %w", err)
	}
	return &SwapRecorder{
		log:     log.With(slog.String("component", "swap_recorder")),
		staking: staking,
		archive: archive,
		metrics: m,
		seen:    seen,
	}, nil
}

// Record credits the swap's volume to its trader. Swaps the protocol refuses
// (zero volume, protocol not initialized) are dropped and reported, not returned.
func (r *SwapRecorder) Record(ctx context.Context, swap *model.Swap) error {
	if ctx.Err() != nil {
		return ErrContextCancelled
	}
	if swap == nil {
		return nil
	}

	if swap.ID != "" && r.seen.Contains(swap.ID) {
		r.metrics.ObserveSwap(outcomeDuplicate)
		return nil
	}

	err := r.recordVolume(ctx, swap)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidParameter), errors.Is(err, service.ErrNotInitialized):
		r.metrics.ObserveSwap(outcomeRejected)
		r.log.Debug("swap rejected", slog.String("swap_id", swap.ID), slog.String("who", swap.Who), sl.Err(err))
		r.remember(swap)
		return nil
	default:
		if ctx.Err() != nil {
			return ErrContextCancelled
		}
		r.metrics.ObserveSwap(outcomeFailed)
		return fmt.Errorf("failed to record swap %s: %w", swap.ID, err)
	}

	r.remember(swap)
	r.metrics.ObserveSwap(outcomeRecorded)

	if r.archive != nil {
		if err := r.archive.SaveSwap(ctx, swap); err != nil {
			r.log.Warn("failed to archive swap", slog.String("swap_id", swap.ID), sl.Err(err))
		}
	}
	return nil
}

func (r *SwapRecorder) remember(swap *model.Swap) {
	if swap.ID != "" {
		r.seen.Add(swap.ID, struct{}{})
	}
}

func (r *SwapRecorder) recordVolume(ctx context.Context, swap *model.Swap) error {
	_, err := r.staking.RecordSwapVolume(ctx, swap.Who, swap.Volume)
	if !errors.Is(err, service.ErrAccountNotFound) {
		return err
	}

	if _, err := r.staking.CreateUserAccount(ctx, swap.Who); err != nil && !errors.Is(err, service.ErrAccountAlreadyExists) {
		return err
	}
	r.log.Debug("created account for new trader", slog.String("who", swap.Who))

	_, err = r.staking.RecordSwapVolume(ctx, swap.Who, swap.Volume)
	return err
}
