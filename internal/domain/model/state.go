package model

import "time"

// Vault identifies a protocol-controlled pool of value.
type Vault string

const (
	StakingVault Vault = "staking"
	RewardVault  Vault = "reward"
)

// GlobalState holds protocol-wide parameters and aggregate counters.
// There is exactly one per deployment.
type GlobalState struct {
	Authority         string        `json:"authority"`
	RewardRate        uint64        `json:"reward_rate"`
	EpochDuration     time.Duration `json:"epoch_duration"`
	MinVolume         uint64        `json:"min_volume"`
	TotalStaked       uint64        `json:"total_staked"`
	TotalDistributed  uint64        `json:"total_distributed"`
	CurrentEpoch      uint64        `json:"current_epoch"`
	CurrentEpochStart time.Time     `json:"current_epoch_start"`
	InitializedAt     time.Time     `json:"initialized_at"`
}

// Clone returns a copy that can be mutated without affecting g.
func (g *GlobalState) Clone() *GlobalState {
	c := *g
	return &c
}

// UserAccount is the per-participant ledger of stake, volume and claims.
type UserAccount struct {
	Owner  string `json:"owner"`
	Staked uint64 `json:"staked"`

	// RecordedVolume is the volume recorded during VolumeEpoch.
	RecordedVolume uint64 `json:"recorded_volume"`
	VolumeEpoch    uint64 `json:"volume_epoch"`
	// PreviousVolume is the volume of the epoch right before VolumeEpoch,
	// zero when the account was idle in that epoch.
	PreviousVolume uint64 `json:"previous_volume"`
	TotalVolume    uint64 `json:"total_volume"`

	LastClaimEpoch uint64    `json:"last_claim_epoch"`
	TotalClaimed   uint64    `json:"total_claimed"`
	FeeTier        FeeTier   `json:"fee_tier"`
	CreatedAt      time.Time `json:"created_at"`
}

// Clone returns a copy that can be mutated without affecting a.
func (a *UserAccount) Clone() *UserAccount {
	c := *a
	return &c
}

// EligibleVolume is the volume that counts toward the reward threshold:
// the current epoch's volume or the volume of the epoch that just closed.
func (a *UserAccount) EligibleVolume() uint64 {
	return max(a.RecordedVolume, a.PreviousVolume)
}
