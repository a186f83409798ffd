package service

import (
	"context"
	"fmt"
	"time"

	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
	"github.com/btorressz/idxflow-orderflow/internal/domain/repository"
	"github.com/btorressz/idxflow-orderflow/internal/domain/useCases"
)

// HistoryService reads the audit log and the swap archive. Either may be nil,
// in which case its queries fail with ErrHistoryUnavailable.
type HistoryService struct {
	events repository.EventPersistence
	swaps  repository.SwapPersistence
}

func NewHistoryService(events repository.EventPersistence, swaps repository.SwapPersistence) *HistoryService {
	return &HistoryService{events: events, swaps: swaps}
}

// EventsSince returns the ledger events committed at or after since.
func (h *HistoryService) EventsSince(ctx context.Context, since time.Time) ([]*model.LedgerEvent, error) {
	if h.events == nil {
		return nil, fmt.Errorf("%w: ledger events", ErrHistoryUnavailable)
	}
	events, err := h.events.GetEventsSince(ctx, clampSince(since))
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger events: %w", err)
	}
	return events, nil
}

// SwapsSince returns the archived swaps executed at or after since,
// truncated to the second.
func (h *HistoryService) SwapsSince(ctx context.Context, since time.Time) ([]*model.Swap, error) {
	if h.swaps == nil {
		return nil, fmt.Errorf("%w: swaps", ErrHistoryUnavailable)
	}
	swaps, err := h.swaps.GetSwapsSince(ctx, clampSince(since).Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to read swaps: %w", err)
	}
	return swaps, nil
}

// clampSince moves times before the unix epoch up to it; the archive cannot
// represent earlier instants.
func clampSince(since time.Time) time.Time {
	if epoch := time.Unix(0, 0).UTC(); since.Before(epoch) {
		return epoch
	}
	return since
}

var _ useCases.History = (*HistoryService)(nil)
