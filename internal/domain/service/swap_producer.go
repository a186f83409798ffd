package service

import (
	"context"
	"log/slog"

	"github.com/btorressz/idxflow-orderflow/internal/app/dto"
	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
	"github.com/btorressz/idxflow-orderflow/internal/infrastructure/queue"
	"github.com/btorressz/idxflow-orderflow/internal/lib/logger/sl"
)

// SwapProducerUseCase handles publishing swaps to the volume feed
type SwapProducerUseCase struct {
	log      *slog.Logger
	Producer queue.SwapProducer
}

// NewSwapProducerUseCase creates a new use case for publishing swaps
func NewSwapProducerUseCase(log *slog.Logger, producer queue.SwapProducer) *SwapProducerUseCase {
	return &SwapProducerUseCase{
		log:      log,
		Producer: producer,
	}
}

// Execute publishes swaps to the feed as one batch
func (uc *SwapProducerUseCase) Execute(ctx context.Context, swaps ...*model.Swap) error {
	if len(swaps) == 0 {
		return nil
	}
	if err := uc.Producer.PublishSwapBatch(ctx, dto.FromModels(swaps)); err != nil {
		uc.log.Error("failed to publish swaps", slog.Int("count", len(swaps)), sl.Err(err))
		return err
	}
	return nil
}
