package websocket_test

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
	"github.com/btorressz/idxflow-orderflow/internal/handlers/websocket"
)

func TestBroadcastEvent(t *testing.T) {
	b := websocket.NewWebSocketBroadcaster(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return b.Clients() == 1 }, time.Second, 10*time.Millisecond)

	b.BroadcastEvent(&model.LedgerEvent{ID: "e1", Kind: model.EventStaked, Owner: "alice", Amount: 42, Epoch: 3})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got model.LedgerEvent
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "e1", got.ID)
	assert.Equal(t, model.EventStaked, got.Kind)
	assert.Equal(t, uint64(42), got.Amount)

	conn.Close()
	require.Eventually(t, func() bool { return b.Clients() == 0 }, time.Second, 10*time.Millisecond)
}
