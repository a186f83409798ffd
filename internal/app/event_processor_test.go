package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btorressz/idxflow-orderflow/internal/app"
	"github.com/btorressz/idxflow-orderflow/internal/app/dto"
	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
	"github.com/btorressz/idxflow-orderflow/internal/domain/service"
	"github.com/btorressz/idxflow-orderflow/internal/domain/useCases"
	"github.com/btorressz/idxflow-orderflow/internal/infrastructure/ledger"
	"github.com/btorressz/idxflow-orderflow/internal/infrastructure/metrics"
	"github.com/btorressz/idxflow-orderflow/internal/infrastructure/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockArchive records archived swaps
type MockArchive struct {
	mu    sync.Mutex
	swaps []*model.Swap
}

func (a *MockArchive) SaveSwap(ctx context.Context, swap *model.Swap) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.swaps = append(a.swaps, swap)
	return nil
}

func (a *MockArchive) GetSwapsSince(ctx context.Context, since int64) ([]*model.Swap, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*model.Swap(nil), a.swaps...), nil
}

func newStaking(t *testing.T, m *metrics.Metrics) *service.StakingService {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Unix(1_700_000_000, 0))
	svc := service.NewStakingService(discardLogger(), service.Dependencies{
		Store:   storage.NewMemoryStore(),
		Ledger:  ledger.NewMemoryLedger(),
		Clock:   clk,
		Metrics: m,
	})
	_, err := svc.Initialize(context.Background(), useCases.InitParams{
		Authority:     "admin",
		RewardRate:    100,
		EpochDuration: time.Minute,
		MinVolume:     5000,
	})
	require.NoError(t, err)
	return svc
}

func TestEventProcessor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	svc := newStaking(t, m)
	archive := &MockArchive{}
	recorder, err := app.NewSwapRecorder(discardLogger(), svc, archive, m, 16)
	require.NoError(t, err)

	swapCh := make(chan *dto.SwapDTO, 10)
	processor := app.NewEventProcessor(discardLogger(), swapCh, recorder)

	done := make(chan error, 1)
	go func() { done <- processor.Run(ctx) }()

	now := time.Now()
	swapCh <- &dto.SwapDTO{ID: "swap1", Token: "ETH", Amount: 1, Volume: 3000, Side: "buy", Who: "user1", Timestamp: now}
	swapCh <- &dto.SwapDTO{ID: "swap2", Token: "BTC", Amount: 1, Volume: 5000, Side: "sell", Who: "user2", Timestamp: now}
	swapCh <- &dto.SwapDTO{ID: "swap3", Token: "ETH", Amount: 2, Volume: 4000, Side: "sell", Who: "user1", Timestamp: now}
	// duplicate delivery
	swapCh <- &dto.SwapDTO{ID: "swap1", Token: "ETH", Amount: 1, Volume: 3000, Side: "buy", Who: "user1", Timestamp: now}
	// zero volume is rejected
	swapCh <- &dto.SwapDTO{ID: "swap4", Token: "ETH", Side: "buy", Who: "user3", Timestamp: now}

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.SwapsProcessed().WithLabelValues("rejected")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	user1, err := svc.Account(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, uint64(7000), user1.RecordedVolume)

	user2, err := svc.Account(ctx, "user2")
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), user2.RecordedVolume)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.SwapsProcessed().WithLabelValues("recorded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SwapsProcessed().WithLabelValues("duplicate")))

	swaps, err := archive.GetSwapsSince(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, swaps, 3)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not stop")
	}
}

func TestSwapRecorderBeforeInitialize(t *testing.T) {
	m := metrics.New()
	svc := service.NewStakingService(discardLogger(), service.Dependencies{
		Store:  storage.NewMemoryStore(),
		Ledger: ledger.NewMemoryLedger(),
		Clock:  clock.NewMock(),
	})
	recorder, err := app.NewSwapRecorder(discardLogger(), svc, nil, m, 0)
	require.NoError(t, err)

	err = recorder.Record(context.Background(), &model.Swap{ID: "s1", Who: "user1", Volume: 10})
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SwapsProcessed().WithLabelValues("rejected")))
}

func TestSwapRecorderCancelled(t *testing.T) {
	svc := newStaking(t, nil)
	recorder, err := app.NewSwapRecorder(discardLogger(), svc, nil, nil, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = recorder.Record(ctx, &model.Swap{ID: "s1", Who: "user1", Volume: 10})
	assert.True(t, errors.Is(err, app.ErrContextCancelled))
}

// MockConsumer feeds a fixed set of swaps and records commits
type MockConsumer struct {
	swaps     []*model.Swap
	mu        sync.Mutex
	committed []string
}

func (c *MockConsumer) Subscribe(ctx context.Context) (<-chan *model.Swap, error) {
	ch := make(chan *model.Swap, len(c.swaps))
	for _, s := range c.swaps {
		ch <- s
	}
	close(ch)
	return ch, nil
}

func (c *MockConsumer) Commit(ctx context.Context, swap *model.Swap) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed = append(c.committed, swap.ID)
	return nil
}

func (c *MockConsumer) Close() error { return nil }

func TestKafkaEventProcessor(t *testing.T) {
	svc := newStaking(t, nil)
	recorder, err := app.NewSwapRecorder(discardLogger(), svc, nil, nil, 16)
	require.NoError(t, err)

	consumer := &MockConsumer{swaps: []*model.Swap{
		{ID: "k1", Who: "trader", Volume: 2500},
		{ID: "k2", Who: "trader", Volume: 2500},
		{ID: "k2", Who: "trader", Volume: 2500},
	}}
	processor := app.NewKafkaEventProcessor(discardLogger(), consumer, recorder)

	// the mock closes its channel once drained, which ends Run
	require.NoError(t, processor.Run(context.Background()))

	acct, err := svc.Account(context.Background(), "trader")
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), acct.RecordedVolume)
	assert.Equal(t, []string{"k1", "k2", "k2"}, consumer.committed)
}
