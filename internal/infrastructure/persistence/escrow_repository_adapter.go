package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type EscrowRepositoryAdapter struct {
	db *sqlx.DB
}

func NewEscrowRepositoryAdapter(db *sqlx.DB) *EscrowRepositoryAdapter {
	return &EscrowRepositoryAdapter{db: db}
}

var _ repository.EscrowRepository = (*EscrowRepositoryAdapter)(nil)

const insertEscrowQuery = `
	INSERT INTO escrow_transactions (` + escrowColumns + `)
	VALUES (:id, :buyer_id, :seller_id, :item_type, :item_title, :item_description,
		:total_amount, :currency, :escrow_fee, :escrow_fee_percentage, :inspection_period_hours, :status,
		:insurance_required, :insurance_amount, :payment_method, :payment_reference, :payout_reference,
		:refund_reference, :buyer_rating, :buyer_feedback, :funded_at, :delivered_at, :inspection_deadline,
		:completed_at, :canceled_at, :expires_at, :created_at, :updated_at, :version, :inspection_reported_at)
`

const updateEscrowQuery = `
	UPDATE escrow_transactions
	SET status = :status, payment_method = :payment_method, payment_reference = :payment_reference,
	    payout_reference = :payout_reference, refund_reference = :refund_reference,
	    buyer_rating = :buyer_rating, buyer_feedback = :buyer_feedback,
	    funded_at = :funded_at, delivered_at = :delivered_at, inspection_deadline = :inspection_deadline,
	    inspection_reported_at = :inspection_reported_at,
	    completed_at = :completed_at, canceled_at = :canceled_at, updated_at = :updated_at,
	    version = version + 1
	WHERE id = :id AND version = :version
`

const upsertMilestoneQuery = `
	INSERT INTO escrow_milestones (` + milestoneColumns + `)
	VALUES (:id, :transaction_id, :title, :description, :amount, :position, :status,
		:delivery_notes, :delivery_proof, :delivered_at, :accepted_at, :created_at, :updated_at)
	ON CONFLICT (id) DO UPDATE
	SET status = EXCLUDED.status, delivery_notes = EXCLUDED.delivery_notes,
	    delivery_proof = EXCLUDED.delivery_proof, delivered_at = EXCLUDED.delivered_at,
	    accepted_at = EXCLUDED.accepted_at, updated_at = EXCLUDED.updated_at
`

const upsertDisputeQuery = `
	INSERT INTO escrow_disputes (` + disputeColumns + `)
	VALUES (:id, :transaction_id, :initiated_by, :initiator_role, :reason, :description,
		:evidence, :requested_resolution, :status, :resolution_outcome, :resolution_note, :resolved_by,
		:created_at, :resolved_at)
	ON CONFLICT (id) DO UPDATE
	SET status = EXCLUDED.status, resolution_outcome = EXCLUDED.resolution_outcome,
	    resolution_note = EXCLUDED.resolution_note, resolved_by = EXCLUDED.resolved_by,
	    resolved_at = EXCLUDED.resolved_at
`

func (r *EscrowRepositoryAdapter) Create(ctx context.Context, t *entity.EscrowTransaction) error {
	err := withTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, insertEscrowQuery, toEscrowRow(t)); err != nil {
			return err
		}
		return saveChildren(ctx, tx, t)
	})
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать сделку")
	}
	return nil
}

func (r *EscrowRepositoryAdapter) Update(ctx context.Context, t *entity.EscrowTransaction) error {
	err := withTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.NamedExecContext(ctx, updateEscrowQuery, toEscrowRow(t))
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return apperror.ErrConcurrentUpdate
		}
		return saveChildren(ctx, tx, t)
	})

	switch {
	case err == nil:
		t.Version++
		return nil
	case errors.Is(err, apperror.ErrConcurrentUpdate):
		return apperror.ErrConcurrentUpdate
	case isUniqueViolation(err, openDisputeIndex):
		return apperror.ErrDisputeAlreadyOpen
	default:
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить сделку")
	}
}

func saveChildren(ctx context.Context, tx *sqlx.Tx, t *entity.EscrowTransaction) error {
	for _, m := range t.Milestones {
		if _, err := tx.NamedExecContext(ctx, upsertMilestoneQuery, toMilestoneRow(m)); err != nil {
			return err
		}
	}
	for _, d := range t.Disputes {
		if _, err := tx.NamedExecContext(ctx, upsertDisputeQuery, toDisputeRow(d)); err != nil {
			return err
		}
	}
	return nil
}

func (r *EscrowRepositoryAdapter) FindByID(ctx context.Context, id uuid.UUID) (*entity.EscrowTransaction, error) {
	var row escrowRow
	query := `SELECT ` + escrowColumns + ` FROM escrow_transactions WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrEscrowNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить сделку")
	}

	items, err := r.hydrate(ctx, []escrowRow{row})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

func (r *EscrowRepositoryAdapter) FindByDisputeID(ctx context.Context, disputeID uuid.UUID) (*entity.EscrowTransaction, error) {
	var transactionID uuid.UUID
	query := `SELECT transaction_id FROM escrow_disputes WHERE id = $1`
	if err := r.db.GetContext(ctx, &transactionID, query, disputeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить спор")
	}
	return r.FindByID(ctx, transactionID)
}

func (r *EscrowRepositoryAdapter) ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.EscrowTransaction, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM escrow_transactions WHERE buyer_id = $1 OR seller_id = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, userID); err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось посчитать сделки")
	}

	var rows []escrowRow
	query := `
		SELECT ` + escrowColumns + `
		FROM escrow_transactions
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить список сделок")
	}

	items, err := r.hydrate(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *EscrowRepositoryAdapter) CountByParticipant(ctx context.Context, userID uuid.UUID) (*repository.ParticipantCounts, error) {
	counts := repository.NewParticipantCounts()

	var totals struct {
		Total    int `db:"total"`
		AsBuyer  int `db:"as_buyer"`
		AsSeller int `db:"as_seller"`
	}
	totalsQuery := `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE buyer_id = $1) AS as_buyer,
		       COUNT(*) FILTER (WHERE seller_id = $1) AS as_seller
		FROM escrow_transactions
		WHERE buyer_id = $1 OR seller_id = $1
	`
	if err := r.db.GetContext(ctx, &totals, totalsQuery, userID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось посчитать статистику")
	}
	counts.Total, counts.AsBuyer, counts.AsSeller = totals.Total, totals.AsBuyer, totals.AsSeller

	var byStatus []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	statusQuery := `
		SELECT status, COUNT(*) AS count
		FROM escrow_transactions
		WHERE buyer_id = $1 OR seller_id = $1
		GROUP BY status
	`
	if err := r.db.SelectContext(ctx, &byStatus, statusQuery, userID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось посчитать статистику")
	}
	for _, s := range byStatus {
		counts.ByStatus[valueobject.EscrowStatus(s.Status)] = s.Count
	}

	var volumes []struct {
		Currency string          `db:"currency"`
		Volume   decimal.Decimal `db:"volume"`
	}
	volumeQuery := `
		SELECT currency, SUM(total_amount) AS volume
		FROM escrow_transactions
		WHERE (buyer_id = $1 OR seller_id = $1) AND status = $2
		GROUP BY currency
	`
	if err := r.db.SelectContext(ctx, &volumes, volumeQuery, userID, string(valueobject.EscrowStatusCompleted)); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось посчитать статистику")
	}
	for _, v := range volumes {
		counts.CompletedVolume[v.Currency] = v.Volume
	}

	return counts, nil
}

func (r *EscrowRepositoryAdapter) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `
		SELECT id FROM escrow_transactions
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at
		LIMIT $3
	`
	if err := r.db.SelectContext(ctx, &ids, query, string(valueobject.EscrowStatusPendingFunding), now, limit); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить просроченные сделки")
	}
	return ids, nil
}

func (r *EscrowRepositoryAdapter) ListInspectionOverdue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `
		SELECT id FROM escrow_transactions
		WHERE status = $1 AND inspection_deadline < $2 AND inspection_reported_at IS NULL
		ORDER BY inspection_deadline
		LIMIT $3
	`
	if err := r.db.SelectContext(ctx, &ids, query, string(valueobject.EscrowStatusDelivered), now, limit); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить сделки с истёкшей проверкой")
	}
	return ids, nil
}

// hydrate догружает этапы и споры для набора сделок двумя запросами.
func (r *EscrowRepositoryAdapter) hydrate(ctx context.Context, rows []escrowRow) ([]*entity.EscrowTransaction, error) {
	if len(rows) == 0 {
		return []*entity.EscrowTransaction{}, nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var milestones []milestoneRow
	if err := r.selectIn(ctx, &milestones,
		`SELECT `+milestoneColumns+` FROM escrow_milestones WHERE transaction_id IN (?) ORDER BY position`, ids); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить этапы сделки")
	}
	var disputes []disputeRow
	if err := r.selectIn(ctx, &disputes,
		`SELECT `+disputeColumns+` FROM escrow_disputes WHERE transaction_id IN (?) ORDER BY created_at`, ids); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить споры сделки")
	}

	milestonesByTx := make(map[uuid.UUID][]milestoneRow, len(rows))
	for _, m := range milestones {
		milestonesByTx[m.TransactionID] = append(milestonesByTx[m.TransactionID], m)
	}
	disputesByTx := make(map[uuid.UUID][]disputeRow, len(rows))
	for _, d := range disputes {
		disputesByTx[d.TransactionID] = append(disputesByTx[d.TransactionID], d)
	}

	items := make([]*entity.EscrowTransaction, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity(milestonesByTx[row.ID], disputesByTx[row.ID]))
	}
	return items, nil
}

func (r *EscrowRepositoryAdapter) selectIn(ctx context.Context, dest interface{}, query string, ids []uuid.UUID) error {
	q, args, err := sqlx.In(query, ids)
	if err != nil {
		return err
	}
	return r.db.SelectContext(ctx, dest, r.db.Rebind(q), args...)
}
