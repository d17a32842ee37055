package notify

import (
	"context"
	"time"

	"github.com/ignatzorin/escrow-backend/internal/domain/port"
	"github.com/ignatzorin/escrow-backend/internal/goroutine"
	"github.com/ignatzorin/escrow-backend/internal/logger"
)

const defaultSinkTimeout = 5 * time.Second

// Sink — именованный получатель событий.
type Sink struct {
	Name     string
	Notifier port.Notifier
}

// Dispatcher рассылает события во все получатели асинхронно. Ошибки получателей
// логируются и не возвращаются вызывающему.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
}

func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, timeout: defaultSinkTimeout}
}

var _ port.Notifier = (*Dispatcher)(nil)

func (d *Dispatcher) Notify(ctx context.Context, event port.Event) error {
	// Доставка не должна обрываться вместе с HTTP запросом.
	base := context.WithoutCancel(ctx)
	for _, sink := range d.sinks {
		s := sink
		goroutine.SafeGo(func() {
			sinkCtx, cancel := context.WithTimeout(base, d.timeout)
			defer cancel()

			if err := s.Notifier.Notify(sinkCtx, event); err != nil {
				logger.L().WithError(err).WithFields(map[string]interface{}{
					"sink":      s.Name,
					"event":     event.Type,
					"escrow_id": event.TransactionID,
				}).Warn("не удалось доставить событие сделки")
			}
		})
	}
	return nil
}

// LogNotifier пишет события в лог. Используется как получатель по умолчанию.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, event port.Event) error {
	logger.Escrow(event.TransactionID, event.ActorID).
		WithField("event", event.Type).
		WithField("status", event.Status).
		Info("событие сделки")
	return nil
}
