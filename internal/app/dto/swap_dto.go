package dto

import (
	"time"

	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
)

// SwapDTO represents a data transfer object for swap events
type SwapDTO struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Amount    uint64    `json:"amount"`
	Volume    uint64    `json:"volume"`
	Side      string    `json:"side"`
	Who       string    `json:"who"`
	Timestamp time.Time `json:"timestamp"`
}

// ToModel converts a SwapDTO to a domain model
func (dto *SwapDTO) ToModel() *model.Swap {
	return &model.Swap{
		ID:        dto.ID,
		Token:     dto.Token,
		Amount:    dto.Amount,
		Volume:    dto.Volume,
		Side:      dto.Side,
		Who:       dto.Who,
		Timestamp: dto.Timestamp,
	}
}

// FromModel creates a SwapDTO from a domain model
func FromModel(swap *model.Swap) *SwapDTO {
	return &SwapDTO{
		ID:        swap.ID,
		Token:     swap.Token,
		Amount:    swap.Amount,
		Volume:    swap.Volume,
		Side:      swap.Side,
		Who:       swap.Who,
		Timestamp: swap.Timestamp,
	}
}

func FromModels(swaps []*model.Swap) []*SwapDTO {
	dtos := make([]*SwapDTO, len(swaps))
	for i, swap := range swaps {
		dtos[i] = FromModel(swap)
	}
	return dtos
}
