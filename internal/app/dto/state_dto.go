package dto

import (
	"time"

	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
)

// InitializeRequest is the body of POST /initialize
type InitializeRequest struct {
	Authority            string `json:"authority"`
	RewardRate           uint64 `json:"reward_rate"`
	EpochDurationSeconds int64  `json:"epoch_duration_seconds"`
	MinVolume            uint64 `json:"min_volume"`
}

// RewardRateRequest is the body of POST /reward-rate
type RewardRateRequest struct {
	Caller     string `json:"caller"`
	RewardRate uint64 `json:"reward_rate"`
}

// AmountRequest is the body of the volume, stake and unstake routes
type AmountRequest struct {
	Amount uint64 `json:"amount"`
}

// GlobalStateDTO represents the protocol state returned by the API
type GlobalStateDTO struct {
	Authority            string    `json:"authority"`
	RewardRate           uint64    `json:"reward_rate"`
	EpochDurationSeconds int64     `json:"epoch_duration_seconds"`
	MinVolume            uint64    `json:"min_volume"`
	TotalStaked          uint64    `json:"total_staked"`
	TotalDistributed     uint64    `json:"total_distributed"`
	CurrentEpoch         uint64    `json:"current_epoch"`
	CurrentEpochStart    time.Time `json:"current_epoch_start"`
}

func FromGlobalState(g *model.GlobalState) *GlobalStateDTO {
	return &GlobalStateDTO{
		Authority:            g.Authority,
		RewardRate:           g.RewardRate,
		EpochDurationSeconds: int64(g.EpochDuration / time.Second),
		MinVolume:            g.MinVolume,
		TotalStaked:          g.TotalStaked,
		TotalDistributed:     g.TotalDistributed,
		CurrentEpoch:         g.CurrentEpoch,
		CurrentEpochStart:    g.CurrentEpochStart,
	}
}

// AccountDTO represents a user account returned by the API
type AccountDTO struct {
	Owner          string `json:"owner"`
	Staked         uint64 `json:"staked"`
	RecordedVolume uint64 `json:"recorded_volume"`
	EligibleVolume uint64 `json:"eligible_volume"`
	VolumeEpoch    uint64 `json:"volume_epoch"`
	TotalVolume    uint64 `json:"total_volume"`
	LastClaimEpoch uint64 `json:"last_claim_epoch"`
	TotalClaimed   uint64 `json:"total_claimed"`
	FeeTier        string `json:"fee_tier"`
}

func FromAccount(a *model.UserAccount) *AccountDTO {
	return &AccountDTO{
		Owner:          a.Owner,
		Staked:         a.Staked,
		RecordedVolume: a.RecordedVolume,
		EligibleVolume: a.EligibleVolume(),
		VolumeEpoch:    a.VolumeEpoch,
		TotalVolume:    a.TotalVolume,
		LastClaimEpoch: a.LastClaimEpoch,
		TotalClaimed:   a.TotalClaimed,
		FeeTier:        string(a.FeeTier),
	}
}

// ClaimDTO is the result of a successful claim
type ClaimDTO struct {
	Owner  string `json:"owner"`
	Reward uint64 `json:"reward"`
}

// RewardsDTO is the reward a claim would pay right now
type RewardsDTO struct {
	Owner   string `json:"owner"`
	Pending uint64 `json:"pending"`
}

// FeeDiscountDTO carries an account's swap fee discount in percent
type FeeDiscountDTO struct {
	Owner           string `json:"owner"`
	DiscountPercent uint16 `json:"discount_percent"`
}

// ErrorDTO is the body of every failed request
type ErrorDTO struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
