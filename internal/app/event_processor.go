package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/btorressz/idxflow-orderflow/internal/app/dto"
	"github.com/btorressz/idxflow-orderflow/internal/lib/logger/sl"
)

// EventProcessor records swap volume from an in-process channel.
type EventProcessor struct {
	log      *slog.Logger
	SwapCh   chan *dto.SwapDTO
	Recorder *SwapRecorder
}

func NewEventProcessor(log *slog.Logger, swapCh chan *dto.SwapDTO, recorder *SwapRecorder) *EventProcessor {
	return &EventProcessor{
		log:      log.With(slog.String("component", "event_processor")),
		SwapCh:   swapCh,
		Recorder: recorder,
	}
}

func (p *EventProcessor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case swapDto, ok := <-p.SwapCh:
			if !ok {
				return nil
			}
			if swapDto == nil {
				continue
			}
			if err := p.Recorder.Record(ctx, swapDto.ToModel()); err != nil {
				if errors.Is(err, ErrContextCancelled) {
					p.log.Info("context cancelled, stopping event processor")
					return ctx.Err()
				}
				// other errors are logged and processing continues
				p.log.Error("failed to process swap", sl.Err(err))
			}
		}
	}
}
