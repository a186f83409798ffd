package model

import "time"

// Swap represents a swap executed on the protocol. Volume is denominated in
// quote base units and is the amount credited to the trader's epoch volume.
type Swap struct {
	ID        string    `json:"id"`
	Who       string    `json:"who"`
	Token     string    `json:"token"`
	Amount    uint64    `json:"amount"`
	Volume    uint64    `json:"volume"`
	Side      string    `json:"side"` // buy/sell
	Timestamp time.Time `json:"timestamp"`
}
