package model

import "time"

// EventKind names a committed state transition.
type EventKind string

const (
	EventInitialized       EventKind = "initialized"
	EventRewardRateUpdated EventKind = "reward_rate_updated"
	EventAccountCreated    EventKind = "account_created"
	EventVolumeRecorded    EventKind = "volume_recorded"
	EventStaked            EventKind = "staked"
	EventUnstaked          EventKind = "unstaked"
	EventRewardsClaimed    EventKind = "rewards_claimed"
)

// LedgerEvent describes one successful operation. Events are emitted only
// after the state change has been committed.
type LedgerEvent struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	Owner     string    `json:"owner,omitempty"`
	Amount    uint64    `json:"amount"`
	Epoch     uint64    `json:"epoch"`
	Timestamp time.Time `json:"timestamp"`
}
