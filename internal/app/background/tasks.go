package background

import (
	"context"
	"sync"
	"time"

	"github.com/ignatzorin/escrow-backend/internal/goroutine"
	"github.com/ignatzorin/escrow-backend/internal/logger"
)

// Sweeper — операции движка, которые можно запускать по таймеру.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
	SweepInspectionDeadlines(ctx context.Context) (int, error)
}

type BackgroundTasks struct {
	sweeper  Sweeper
	interval time.Duration
	wg       sync.WaitGroup
}

// NewBackgroundTasks создаёт фоновые задачи. interval <= 0 отключает их:
// сроки сделок тогда проверяются только при обращении к сделке.
func NewBackgroundTasks(sweeper Sweeper, interval time.Duration) *BackgroundTasks {
	return &BackgroundTasks{sweeper: sweeper, interval: interval}
}

func (bt *BackgroundTasks) Enabled() bool {
	return bt.interval > 0
}

func (bt *BackgroundTasks) StartAll(ctx context.Context) {
	if !bt.Enabled() {
		logger.L().Info("фоновая проверка сроков сделок отключена")
		return
	}
	bt.start(ctx, "expire_pending", bt.sweeper.SweepExpired)
	bt.start(ctx, "inspection_deadlines", bt.sweeper.SweepInspectionDeadlines)
}

// Wait ждёт завершения задач после отмены контекста.
func (bt *BackgroundTasks) Wait() {
	bt.wg.Wait()
}

func (bt *BackgroundTasks) start(ctx context.Context, name string, sweep func(context.Context) (int, error)) {
	bt.wg.Add(1)
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		defer bt.wg.Done()

		ticker := time.NewTicker(bt.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				goroutine.DefaultRecoveryHandler.Run(name, func() {
					bt.runOnce(ctx, name, sweep)
				})
			}
		}
	})
}

func (bt *BackgroundTasks) runOnce(ctx context.Context, name string, sweep func(context.Context) (int, error)) {
	n, err := sweep(ctx)
	entry := logger.L().WithField("task", name)
	if err != nil {
		if ctx.Err() == nil {
			entry.WithError(err).Error("ошибка фоновой задачи")
		}
		return
	}
	if n > 0 {
		entry.WithField("processed", n).Info("фоновая задача обработала сделки")
	}
}
