package escrow

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

// Get возвращает сделку участнику. Для всех остальных сделка «не существует».
// Просроченная неоплаченная сделка при чтении переводится в expired.
func (e *Engine) Get(ctx context.Context, id, userID uuid.UUID) (*entity.EscrowTransaction, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	tx, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tx.IsParticipant(userID) {
		return nil, apperror.ErrEscrowNotFound
	}
	if err := e.expireIfDue(ctx, tx, e.clock.Now()); err != nil {
		return nil, err
	}
	return tx, nil
}

type ListResult struct {
	Items   []*entity.EscrowTransaction
	Total   int
	Page    int
	PerPage int
}

func (r ListResult) HasMore() bool {
	return r.Page*r.PerPage < r.Total
}

// List возвращает сделки, где пользователь покупатель или продавец, новые первыми.
// Страницы нумеруются с 1.
func (e *Engine) List(ctx context.Context, userID uuid.UUID, page int) (*ListResult, error) {
	if page < 1 {
		page = 1
	}
	limit := e.cfg.PageSize
	items, total, err := e.repo.ListByParticipant(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	for i, tx := range items {
		if tx.IsExpired(now) {
			// Get сохранит истечение срока и вернёт актуальную версию.
			fresh, err := e.Get(ctx, tx.ID, userID)
			if err != nil {
				return nil, err
			}
			items[i] = fresh
		}
	}

	return &ListResult{Items: items, Total: total, Page: page, PerPage: limit}, nil
}
