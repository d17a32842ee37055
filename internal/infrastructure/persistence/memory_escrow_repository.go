package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

// MemoryEscrowRepository хранит сделки в памяти процесса. Используется для локального
// запуска без PostgreSQL (ESCROW_STORE=memory) и в тестах. Соблюдает те же
// инварианты, что и PostgreSQL: версионирование и один открытый спор на сделку.
type MemoryEscrowRepository struct {
	mu       sync.RWMutex
	items    map[uuid.UUID]*entity.EscrowTransaction
	disputes map[uuid.UUID]uuid.UUID
}

func NewMemoryEscrowRepository() *MemoryEscrowRepository {
	return &MemoryEscrowRepository{
		items:    make(map[uuid.UUID]*entity.EscrowTransaction),
		disputes: make(map[uuid.UUID]uuid.UUID),
	}
}

var _ repository.EscrowRepository = (*MemoryEscrowRepository)(nil)

func (r *MemoryEscrowRepository) Create(ctx context.Context, t *entity.EscrowTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[t.ID]; exists {
		return apperror.New(apperror.ErrCodeDatabaseError, "сделка с таким id уже существует")
	}
	r.store(t)
	return nil
}

func (r *MemoryEscrowRepository) Update(ctx context.Context, t *entity.EscrowTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[t.ID]
	if !ok {
		return apperror.ErrEscrowNotFound
	}
	if current.Version != t.Version {
		return apperror.ErrConcurrentUpdate
	}
	open := 0
	for _, d := range t.Disputes {
		if d.IsOpen() {
			open++
		}
	}
	if open > 1 {
		return apperror.ErrDisputeAlreadyOpen
	}

	t.Version++
	r.store(t)
	return nil
}

func (r *MemoryEscrowRepository) store(t *entity.EscrowTransaction) {
	r.items[t.ID] = t.Clone()
	for _, d := range t.Disputes {
		r.disputes[d.ID] = t.ID
	}
}

func (r *MemoryEscrowRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.EscrowTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.items[id]
	if !ok {
		return nil, apperror.ErrEscrowNotFound
	}
	return t.Clone(), nil
}

func (r *MemoryEscrowRepository) FindByDisputeID(ctx context.Context, disputeID uuid.UUID) (*entity.EscrowTransaction, error) {
	r.mu.RLock()
	txID, ok := r.disputes[disputeID]
	r.mu.RUnlock()
	if !ok {
		return nil, apperror.ErrDisputeNotFound
	}
	return r.FindByID(ctx, txID)
}

func (r *MemoryEscrowRepository) ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.EscrowTransaction, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*entity.EscrowTransaction
	for _, t := range r.items {
		if t.IsParticipant(userID) {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	result := make([]*entity.EscrowTransaction, 0, limit)
	for i := offset; i < total && len(result) < limit; i++ {
		result = append(result, matched[i].Clone())
	}
	return result, total, nil
}

func (r *MemoryEscrowRepository) CountByParticipant(ctx context.Context, userID uuid.UUID) (*repository.ParticipantCounts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := repository.NewParticipantCounts()
	for _, t := range r.items {
		if !t.IsParticipant(userID) {
			continue
		}
		counts.Total++
		if t.IsBuyer(userID) {
			counts.AsBuyer++
		}
		if t.IsSeller(userID) {
			counts.AsSeller++
		}
		counts.ByStatus[t.Status]++
		if t.Status == valueobject.EscrowStatusCompleted {
			counts.CompletedVolume[t.Currency] = counts.CompletedVolume[t.Currency].Add(t.TotalAmount)
		}
	}
	return counts, nil
}

func (r *MemoryEscrowRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []uuid.UUID
	for _, t := range r.items {
		if len(ids) >= limit {
			break
		}
		if t.IsExpired(now) {
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

func (r *MemoryEscrowRepository) ListInspectionOverdue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []uuid.UUID
	for _, t := range r.items {
		if len(ids) >= limit {
			break
		}
		if t.InspectionReportDue(now) {
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}
