package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSwaps(t *testing.T) {
	g := NewSwapGenerator(3)
	swaps := g.GenerateSwaps(6)

	assert.Len(t, swaps, 6)
	assert.Equal(t, "trader0", swaps[0].Who)
	assert.Equal(t, "trader0", swaps[3].Who)
	assert.Equal(t, uint64(1500), swaps[5].Volume)
	assert.NotEqual(t, swaps[0].ID, swaps[1].ID)
}

func TestGenerateRandomSwap(t *testing.T) {
	g := NewSwapGenerator(0)
	for _, swap := range g.GenerateRandomSwap(100) {
		assert.NotEmpty(t, swap.ID)
		assert.Contains(t, []string{"buy", "sell"}, swap.Side)
		assert.GreaterOrEqual(t, swap.Volume, uint64(100))
		assert.Less(t, swap.Volume, uint64(5100))
		assert.False(t, swap.Timestamp.IsZero())
	}
}
