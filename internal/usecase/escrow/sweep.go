package escrow

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/port"
	"github.com/ignatzorin/escrow-backend/internal/logger"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

// SweepExpired переводит в expired неоплаченные сделки с истёкшим окном оплаты.
// Возвращает количество истёкших сделок.
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	ids, err := e.repo.ListExpiredPending(ctx, e.clock.Now(), e.cfg.SweepBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return expired, err
		}

		ok, err := e.expireOne(ctx, id)
		if err != nil {
			if apperror.HasCode(err, apperror.ErrCodeConflict) {
				continue
			}
			return expired, err
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}

func (e *Engine) expireOne(ctx context.Context, id uuid.UUID) (bool, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	tx, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	now := e.clock.Now()
	if !tx.IsExpired(now) {
		return false, nil
	}
	if err := e.expireIfDue(ctx, tx, now); err != nil {
		return false, err
	}
	return true, nil
}

// SweepInspectionDeadlines сообщает о поставленных сделках, период проверки которых истёк.
// Статус сделок не меняется: решение остаётся за покупателем или арбитром.
// Отметка inspection_reported_at сохраняется вместе со сделкой, поэтому за один проход
// обрабатывается до SweepBatchSize ещё не обработанных сделок и о каждой сообщается один раз.
func (e *Engine) SweepInspectionDeadlines(ctx context.Context) (int, error) {
	ids, err := e.repo.ListInspectionOverdue(ctx, e.clock.Now(), e.cfg.SweepBatchSize)
	if err != nil {
		return 0, err
	}

	reported := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return reported, err
		}

		ok, err := e.reportInspectionOverdue(ctx, id)
		if err != nil {
			if apperror.HasCode(err, apperror.ErrCodeConflict) {
				continue
			}
			return reported, err
		}
		if ok {
			reported++
		}
	}
	return reported, nil
}

func (e *Engine) reportInspectionOverdue(ctx context.Context, id uuid.UUID) (bool, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	tx, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	now := e.clock.Now()
	if !tx.InspectionReportDue(now) {
		return false, nil
	}
	if err := tx.MarkInspectionReported(now); err != nil {
		return false, err
	}
	if err := e.repo.Update(ctx, tx); err != nil {
		return false, err
	}

	e.notify(ctx, newEvent(port.EventInspectionDeadlinePassed, tx, nil, now))
	logger.Escrow(tx.ID, nil).
		WithField("inspection_deadline", tx.InspectionDeadline).
		Info("период проверки сделки истёк")
	return true, nil
}
