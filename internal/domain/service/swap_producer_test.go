package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btorressz/idxflow-orderflow/internal/app/dto"
	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
	"github.com/btorressz/idxflow-orderflow/internal/domain/service"
)

type batchProducer struct {
	batches [][]*dto.SwapDTO
	err     error
}

func (p *batchProducer) PublishSwapBatch(ctx context.Context, swaps []*dto.SwapDTO) error {
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, swaps)
	return nil
}

func (p *batchProducer) Close() error { return nil }

func TestSwapProducerPublishesOneBatch(t *testing.T) {
	producer := &batchProducer{}
	uc := service.NewSwapProducerUseCase(slog.New(slog.NewTextHandler(io.Discard, nil)), producer)
	ctx := context.Background()

	require.NoError(t, uc.Execute(ctx))
	assert.Empty(t, producer.batches)

	require.NoError(t, uc.Execute(ctx,
		&model.Swap{ID: "s1", Who: "alice", Volume: 10},
		&model.Swap{ID: "s2", Who: "bob", Volume: 20},
	))
	require.Len(t, producer.batches, 1)
	require.Len(t, producer.batches[0], 2)
	assert.Equal(t, "bob", producer.batches[0][1].Who)

	producer.err = errors.New("broker down")
	assert.ErrorIs(t, uc.Execute(ctx, &model.Swap{ID: "s3", Who: "alice"}), producer.err)
}
