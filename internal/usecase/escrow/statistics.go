package escrow

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

// Statistics — сводка по сделкам пользователя в обеих ролях.
type Statistics struct {
	TotalTransactions int                        `json:"total_transactions"`
	AsBuyer           int                        `json:"as_buyer"`
	AsSeller          int                        `json:"as_seller"`
	ByStatus          map[string]int             `json:"by_status"`
	CompletedVolume   map[string]decimal.Decimal `json:"completed_volume"`
	SuccessRate       float64                    `json:"success_rate"`
	DisputeRate       float64                    `json:"dispute_rate"`
}

// Statistics считает статистику пользователя. Результат кэшируется и сбрасывается
// при каждом изменении сделок пользователя.
func (e *Engine) Statistics(ctx context.Context, userID uuid.UUID) (*Statistics, error) {
	value, err := e.cache.GetOrSet(ctx, service.EscrowStatsCacheKey(userID), e.cfg.StatsCacheTTL, func() (interface{}, error) {
		counts, err := e.repo.CountByParticipant(ctx, userID)
		if err != nil {
			return nil, err
		}

		stats := &Statistics{
			TotalTransactions: counts.Total,
			AsBuyer:           counts.AsBuyer,
			AsSeller:          counts.AsSeller,
			ByStatus:          make(map[string]int, len(valueobject.AllEscrowStatuses())),
			CompletedVolume:   counts.CompletedVolume,
		}
		for _, s := range valueobject.AllEscrowStatuses() {
			stats.ByStatus[string(s)] = counts.ByStatus[s]
		}

		completed := counts.ByStatus[valueobject.EscrowStatusCompleted]
		disputed := counts.ByStatus[valueobject.EscrowStatusDisputed]
		stats.SuccessRate = valueobject.Percentage(completed, completed+disputed, 100)
		stats.DisputeRate = valueobject.Percentage(disputed, counts.Total, 0)
		return stats, nil
	})
	if err != nil {
		return nil, err
	}

	stats, ok := value.(*Statistics)
	if !ok {
		return nil, apperror.New(apperror.ErrCodeInternal, "некорректное значение статистики в кэше")
	}
	return stats, nil
}
