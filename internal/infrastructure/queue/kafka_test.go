package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btorressz/idxflow-orderflow/internal/app/dto"
	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
)

func TestSwapMessagesKeyedByTrader(t *testing.T) {
	ts := time.Unix(1_700_000_000, 0).UTC()
	msgs, err := swapMessages([]*dto.SwapDTO{
		{ID: "s1", Who: "alice", Volume: 6000, Side: "buy", Timestamp: ts},
		{ID: "s2", Who: "bob", Volume: 10, Side: "sell", Timestamp: ts},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "alice", string(msgs[0].Key))
	assert.Equal(t, "bob", string(msgs[1].Key))

	// the consumer decodes the domain model straight from the payload
	var swap model.Swap
	require.NoError(t, json.Unmarshal(msgs[0].Value, &swap))
	assert.Equal(t, "s1", swap.ID)
	assert.Equal(t, uint64(6000), swap.Volume)
	assert.True(t, ts.Equal(swap.Timestamp))
}
