package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

func TestMemoryRepository_OptimisticVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryEscrowRepository()
	tx := newTestTransaction(t, uuid.New(), uuid.New(), testNow)
	require.NoError(t, repo.Create(ctx, tx))

	first, err := repo.FindByID(ctx, tx.ID)
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, tx.ID)
	require.NoError(t, err)

	require.NoError(t, first.MarkFunded("card", "ch_1", testNow))
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	require.NoError(t, second.MarkFunded("card", "ch_2", testNow))
	err = repo.Update(ctx, second)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeConflict))

	stored, err := repo.FindByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "ch_1", *stored.PaymentReference)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryEscrowRepository()
	tx := newTestTransaction(t, uuid.New(), uuid.New(), testNow)
	require.NoError(t, repo.Create(ctx, tx))

	loaded, err := repo.FindByID(ctx, tx.ID)
	require.NoError(t, err)
	loaded.Status = valueobject.EscrowStatusCompleted

	again, err := repo.FindByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.EscrowStatusPendingFunding, again.Status)
}

func TestMemoryRepository_ListByParticipant(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryEscrowRepository()
	user := uuid.New()

	for i := 0; i < 5; i++ {
		tx := newTestTransaction(t, user, uuid.New(), testNow.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Create(ctx, tx))
	}
	require.NoError(t, repo.Create(ctx, newTestTransaction(t, uuid.New(), uuid.New(), testNow)))

	page, total, err := repo.ListByParticipant(ctx, user, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	last, _, err := repo.ListByParticipant(ctx, user, 2, 4)
	require.NoError(t, err)
	assert.Len(t, last, 1)
}

func TestMemoryRepository_CountByParticipant(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryEscrowRepository()
	user := uuid.New()

	asBuyer := newTestTransaction(t, user, uuid.New(), testNow)
	require.NoError(t, asBuyer.MarkFunded("card", "ch", testNow))
	_, err := asBuyer.MarkDelivered(nil, nil, nil, testNow)
	require.NoError(t, err)
	_, err = asBuyer.MarkAccepted(nil, testNow)
	require.NoError(t, err)
	require.NoError(t, asBuyer.Complete("po", testNow))
	require.NoError(t, repo.Create(ctx, asBuyer))
	require.NoError(t, repo.Create(ctx, newTestTransaction(t, uuid.New(), user, testNow)))

	counts, err := repo.CountByParticipant(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Total)
	assert.Equal(t, 1, counts.AsBuyer)
	assert.Equal(t, 1, counts.AsSeller)
	assert.Equal(t, 1, counts.ByStatus[valueobject.EscrowStatusCompleted])
	assert.Equal(t, 1, counts.ByStatus[valueobject.EscrowStatusPendingFunding])
	assert.Equal(t, "500.00", counts.CompletedVolume["EUR"].StringFixed(2))
}

func TestMemoryRepository_Sweeps(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryEscrowRepository()
	tx := newTestTransaction(t, uuid.New(), uuid.New(), testNow)
	require.NoError(t, repo.Create(ctx, tx))

	ids, err := repo.ListExpiredPending(ctx, testNow.Add(24*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = repo.ListExpiredPending(ctx, testNow.Add(8*24*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{tx.ID}, ids)
}

func TestMemoryRepository_ListInspectionOverdueSkipsReported(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryEscrowRepository()

	delivered := func() *entity.EscrowTransaction {
		tx := newTestTransaction(t, uuid.New(), uuid.New(), testNow)
		require.NoError(t, tx.MarkFunded("card", "ch_1", testNow))
		for i := range tx.Milestones {
			id := tx.Milestones[i].ID
			_, err := tx.MarkDelivered(&id, nil, nil, testNow.Add(time.Hour))
			require.NoError(t, err)
		}
		require.NoError(t, repo.Create(ctx, tx))
		return tx
	}
	first := delivered()
	second := delivered()

	after := *first.InspectionDeadline
	after = after.Add(time.Minute)

	ids, err := repo.ListInspectionOverdue(ctx, after, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, ids)

	stored, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	require.NoError(t, stored.MarkInspectionReported(after))
	require.NoError(t, repo.Update(ctx, stored))

	ids, err = repo.ListInspectionOverdue(ctx, after, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{second.ID}, ids)

	ids, err = repo.ListInspectionOverdue(ctx, testNow.Add(2*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, ids, "срок проверки ещё не истёк")
}

func TestMemoryRepository_FindByDisputeID(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryEscrowRepository()

	_, err := repo.FindByDisputeID(ctx, uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}
