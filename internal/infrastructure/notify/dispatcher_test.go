package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/escrow-backend/internal/domain/port"
)

type recordingSink struct {
	mu     sync.Mutex
	events []port.Event
	err    error
}

func (s *recordingSink) Notify(ctx context.Context, event port.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type panickingSink struct{}

func (panickingSink) Notify(context.Context, port.Event) error { panic("sink exploded") }

func TestDispatcher_FansOutDespiteFailures(t *testing.T) {
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("unavailable")}
	d := NewDispatcher(
		Sink{Name: "ok", Notifier: ok},
		Sink{Name: "failing", Notifier: failing},
		Sink{Name: "panicking", Notifier: panickingSink{}},
		Sink{Name: "log", Notifier: LogNotifier{}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	err := d.Notify(ctx, port.Event{Type: port.EventEscrowCreated, TransactionID: uuid.New()})
	cancel()

	assert.NoError(t, err)
	assert.Eventually(t, func() bool { return ok.count() == 1 && failing.count() == 1 }, time.Second, 5*time.Millisecond)
}
