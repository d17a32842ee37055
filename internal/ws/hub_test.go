package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-backend/internal/domain/port"
)

func TestHub_NotifyDeliversToBothParties(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	buyer := &Client{hub: hub, userID: uuid.New(), send: make(chan []byte, 4)}
	seller := &Client{hub: hub, userID: uuid.New(), send: make(chan []byte, 4)}
	hub.Register(buyer)
	hub.Register(seller)

	ev := port.Event{
		Type:          port.EventEscrowFunded,
		TransactionID: uuid.New(),
		BuyerID:       buyer.userID,
		SellerID:      seller.userID,
		Status:        "funded",
	}
	require.NoError(t, hub.Notify(ctx, ev))

	for _, c := range []*Client{buyer, seller} {
		select {
		case raw := <-c.send:
			var msg struct {
				Type string     `json:"type"`
				Data port.Event `json:"data"`
			}
			require.NoError(t, json.Unmarshal(raw, &msg))
			assert.Equal(t, "escrow.funded", msg.Type)
			assert.Equal(t, ev.TransactionID, msg.Data.TransactionID)
		case <-time.After(time.Second):
			t.Fatal("сообщение не доставлено")
		}
	}
}

func TestHub_UnregisterRemovesClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	c := &Client{hub: hub, userID: uuid.New(), send: make(chan []byte, 1)}
	hub.Register(c)
	assert.Eventually(t, func() bool { return hub.Connected(c.userID) == 1 }, time.Second, 5*time.Millisecond)

	hub.Unregister(c)
	assert.Eventually(t, func() bool { return hub.Connected(c.userID) == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastAfterStopFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	// буфер канала может принять сообщение, поэтому заполняем его
	var err error
	for i := 0; i < cap(hub.broadcast)+1 && err == nil; i++ {
		err = hub.BroadcastToUser(context.Background(), uuid.New(), "x", nil)
	}
	assert.Error(t, err)
}
