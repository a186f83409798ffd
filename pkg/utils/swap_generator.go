package utils

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
)

var (
	tokens = []string{"ETH", "BTC", "XRP", "ADA", "SOL", "DOT", "LTC", "LINK", "BCH", "XLM"}
	sides  = []string{"buy", "sell"}
)

// SwapGenerator provides methods to generate test swap data
type SwapGenerator struct {
	traders int
	rnd     *rand.Rand
}

// NewSwapGenerator creates a generator spreading swaps over the given number of traders
func NewSwapGenerator(traders int) *SwapGenerator {
	if traders <= 0 {
		traders = 10
	}
	return &SwapGenerator{
		traders: traders,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *SwapGenerator) trader(i int) string {
	return fmt.Sprintf("trader%d", i%g.traders)
}

// GenerateSwaps creates count swaps with predictable fields
func (g *SwapGenerator) GenerateSwaps(count int) []*model.Swap {
	swaps := make([]*model.Swap, count)
	for i := 0; i < count; i++ {
		swaps[i] = &model.Swap{
			ID:        uuid.New().String(),
			Who:       g.trader(i),
			Token:     tokens[i%len(tokens)],
			Amount:    uint64(1 + i%10),
			Volume:    uint64(1000 + i*100),
			Side:      sides[i%2],
			Timestamp: time.Now(),
		}
	}
	return swaps
}

// GenerateRandomSwap creates count swaps with random traders and volumes.
// Not safe for concurrent use.
func (g *SwapGenerator) GenerateRandomSwap(count int) []*model.Swap {
	swaps := make([]*model.Swap, count)
	for i := 0; i < count; i++ {
		swaps[i] = &model.Swap{
			ID:        uuid.New().String(),
			Who:       g.trader(g.rnd.Intn(g.traders)),
			Token:     tokens[g.rnd.Intn(len(tokens))],
			Amount:    uint64(1 + g.rnd.Intn(10)),
			Volume:    uint64(100 + g.rnd.Intn(5000)),
			Side:      sides[g.rnd.Intn(len(sides))],
			Timestamp: time.Now(),
		}
	}
	return swaps
}
