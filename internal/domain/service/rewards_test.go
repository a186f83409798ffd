package service

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
)

func TestEntitlement(t *testing.T) {
	tests := []struct {
		staked, rate, epochs uint64
		want                 uint64
	}{
		{2_000_000_000, 100, 1, 200_000_000_000},
		{2_000_000_000, 100, 3, 600_000_000_000},
		{0, 100, 5, 0},
		{10, 0, 5, 0},
		{10, 5, 0, 0},
		{math.MaxUint64, 2, 1, math.MaxUint64},
		{math.MaxUint64, math.MaxUint64, math.MaxUint64, math.MaxUint64},
		{1 << 32, 1 << 31, 1, 1 << 63},
		{1 << 32, 1 << 32, 1, math.MaxUint64},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Entitlement(tt.staked, tt.rate, tt.epochs), "%d*%d*%d", tt.staked, tt.rate, tt.epochs)
	}
}

func TestEpochsElapsed(t *testing.T) {
	assert.Equal(t, uint64(3), EpochsElapsed(5, 2))
	assert.Zero(t, EpochsElapsed(2, 2))
	assert.Zero(t, EpochsElapsed(1, 2))
}

func TestAddChecked(t *testing.T) {
	sum, err := addChecked(1, 2)
	assert.NoError(t, err)
	assert.Equal(t, uint64(3), sum)

	_, err = addChecked(math.MaxUint64, 1)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	assert.Equal(t, uint64(math.MaxUint64), saturatingAdd(math.MaxUint64-1, 5))
}

func TestAdvanceEpoch(t *testing.T) {
	start := time.Unix(1_000, 0)
	tests := []struct {
		elapsed   time.Duration
		crossed   uint64
		wantStart time.Time
	}{
		{0, 0, start},
		{59 * time.Second, 0, start},
		{60 * time.Second, 1, start.Add(60 * time.Second)},
		{119 * time.Second, 1, start.Add(60 * time.Second)},
		{600 * time.Second, 10, start.Add(600 * time.Second)},
		{-time.Second, 0, start},
	}
	for _, tt := range tests {
		g := &model.GlobalState{EpochDuration: time.Minute, CurrentEpoch: 4, CurrentEpochStart: start}
		now := start.Add(tt.elapsed)

		assert.Equal(t, tt.crossed, advanceEpoch(g, now), "elapsed %s", tt.elapsed)
		assert.Equal(t, 4+tt.crossed, g.CurrentEpoch)
		assert.True(t, tt.wantStart.Equal(g.CurrentEpochStart))

		// same instant again is a no-op
		assert.Zero(t, advanceEpoch(g, now))
		assert.Equal(t, 4+tt.crossed, g.CurrentEpoch)
	}
}

func TestSyncAccountEpoch(t *testing.T) {
	acct := &model.UserAccount{RecordedVolume: 10, VolumeEpoch: 3}

	syncAccountEpoch(acct, 3)
	assert.Equal(t, uint64(10), acct.RecordedVolume)

	syncAccountEpoch(acct, 4)
	assert.Zero(t, acct.RecordedVolume)
	assert.Equal(t, uint64(10), acct.PreviousVolume)
	assert.Equal(t, uint64(4), acct.VolumeEpoch)

	acct.RecordedVolume = 7
	syncAccountEpoch(acct, 6)
	assert.Zero(t, acct.RecordedVolume)
	assert.Zero(t, acct.PreviousVolume)
	assert.Equal(t, uint64(6), acct.VolumeEpoch)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "ok", ErrorKind(nil))
	assert.Equal(t, "already_claimed", ErrorKind(fmt.Errorf("%w: epoch 3", ErrAlreadyClaimed)))
	assert.Equal(t, "external_transfer_failed", ErrorKind(fmt.Errorf("%w: %w", ErrExternalTransferFailed, errors.New("boom"))))
	assert.Equal(t, "internal", ErrorKind(errors.New("boom")))
}
