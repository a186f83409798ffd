package model

// FeeTier ranks a staker by the size of its stake.
type FeeTier string

const (
	FeeTierBronze   FeeTier = "bronze"
	FeeTierSilver   FeeTier = "silver"
	FeeTierGold     FeeTier = "gold"
	FeeTierPlatinum FeeTier = "platinum"
	FeeTierDiamond  FeeTier = "diamond"
)

// Tier thresholds in base units (6 decimals).
const (
	silverThreshold   uint64 = 1_000_000_000
	goldThreshold     uint64 = 10_000_000_000
	platinumThreshold uint64 = 50_000_000_000
	diamondThreshold  uint64 = 100_000_000_000
)

// FeeTierFor returns the tier earned by a stake of the given size.
func FeeTierFor(staked uint64) FeeTier {
	switch {
	case staked >= diamondThreshold:
		return FeeTierDiamond
	case staked >= platinumThreshold:
		return FeeTierPlatinum
	case staked >= goldThreshold:
		return FeeTierGold
	case staked >= silverThreshold:
		return FeeTierSilver
	default:
		return FeeTierBronze
	}
}

// Discount is the swap fee discount of the tier, in percent.
func (t FeeTier) Discount() uint16 {
	switch t {
	case FeeTierSilver:
		return 10
	case FeeTierGold:
		return 25
	case FeeTierPlatinum:
		return 50
	case FeeTierDiamond:
		return 75
	default:
		return 0
	}
}
