package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-backend/internal/domain/port"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

func TestEscrowEventPublisher_Notify(t *testing.T) {
	w := new(mockWriter)
	p := &EscrowEventPublisher{writer: w}
	ev := port.Event{
		Type:          port.EventEscrowCompleted,
		TransactionID: uuid.New(),
		Status:        "completed",
		OccurredAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	var sent []kafka.Message
	w.On("WriteMessages", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).([]kafka.Message) }).
		Return(nil)

	require.NoError(t, p.Notify(context.Background(), ev))
	require.Len(t, sent, 1)
	assert.Equal(t, ev.TransactionID.String(), string(sent[0].Key))
	assert.Equal(t, "escrow.completed", string(sent[0].Headers[0].Value))

	var decoded port.Event
	require.NoError(t, json.Unmarshal(sent[0].Value, &decoded))
	assert.Equal(t, ev.TransactionID, decoded.TransactionID)
	w.AssertExpectations(t)
}

func TestEscrowEventPublisher_WriteError(t *testing.T) {
	w := new(mockWriter)
	p := &EscrowEventPublisher{writer: w}
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	err := p.Notify(context.Background(), port.Event{Type: port.EventEscrowFunded})
	assert.ErrorContains(t, err, "broker down")
}
