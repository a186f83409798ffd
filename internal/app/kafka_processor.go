package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/btorressz/idxflow-orderflow/internal/infrastructure/queue"
	"github.com/btorressz/idxflow-orderflow/internal/lib/logger/sl"
)

// KafkaEventProcessor records swap volume consumed from Kafka.
// Swaps that fail to record are logged and skipped; their offsets are
// committed with the next batch.
type KafkaEventProcessor struct {
	log          *slog.Logger
	SwapConsumer queue.SwapConsumer
	Recorder     *SwapRecorder
}

func NewKafkaEventProcessor(log *slog.Logger, consumer queue.SwapConsumer, recorder *SwapRecorder) *KafkaEventProcessor {
	return &KafkaEventProcessor{
		log:          log.With(slog.String("component", "kafka_processor")),
		SwapConsumer: consumer,
		Recorder:     recorder,
	}
}

// Run starts the Kafka event processor
func (p *KafkaEventProcessor) Run(ctx context.Context) error {
	swapCh, err := p.SwapConsumer.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case swap, ok := <-swapCh:
			if !ok {
				return ctx.Err()
			}
			if swap == nil {
				continue
			}

			if err := p.Recorder.Record(ctx, swap); err != nil {
				if errors.Is(err, ErrContextCancelled) {
					return ctx.Err()
				}
				p.log.Error("failed to process swap", slog.String("swap_id", swap.ID), sl.Err(err))
				continue
			}

			if err := p.SwapConsumer.Commit(ctx, swap); err != nil && ctx.Err() == nil {
				p.log.Warn("failed to commit swap", slog.String("swap_id", swap.ID), sl.Err(err))
			}
		}
	}
}
