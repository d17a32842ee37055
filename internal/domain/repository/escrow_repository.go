package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
)

// EscrowRepository хранит сделки вместе с этапами и спорами.
//
// Update сохраняет сделку только если её Version совпадает с сохранённой,
// иначе возвращает apperror.ErrConcurrentUpdate. При успехе Version увеличивается.
type EscrowRepository interface {
	Create(ctx context.Context, tx *entity.EscrowTransaction) error
	Update(ctx context.Context, tx *entity.EscrowTransaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.EscrowTransaction, error)
	FindByDisputeID(ctx context.Context, disputeID uuid.UUID) (*entity.EscrowTransaction, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.EscrowTransaction, int, error)
	CountByParticipant(ctx context.Context, userID uuid.UUID) (*ParticipantCounts, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	// ListInspectionOverdue возвращает поставленные сделки с истёкшей проверкой,
	// о которых ещё не сообщали.
	ListInspectionOverdue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// ParticipantCounts — агрегаты по сделкам пользователя для статистики.
type ParticipantCounts struct {
	Total           int
	AsBuyer         int
	AsSeller        int
	ByStatus        map[valueobject.EscrowStatus]int
	CompletedVolume map[string]decimal.Decimal
}

func NewParticipantCounts() *ParticipantCounts {
	return &ParticipantCounts{
		ByStatus:        make(map[valueobject.EscrowStatus]int),
		CompletedVolume: make(map[string]decimal.Decimal),
	}
}
