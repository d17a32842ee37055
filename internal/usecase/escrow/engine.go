package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/escrow-backend/internal/domain/port"
	"github.com/ignatzorin/escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-backend/internal/logger"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

const (
	DefaultPageSize  = 20
	defaultSweepSize = 100
)

type Config struct {
	DefaultFeePercentage   decimal.Decimal
	DefaultInspectionHours int
	FundingWindow          time.Duration
	StatsCacheTTL          time.Duration
	PageSize               int
	SweepBatchSize         int
}

func DefaultConfig() Config {
	return Config{
		DefaultFeePercentage:   entity.DefaultFeePercentage,
		DefaultInspectionHours: entity.DefaultInspectionHours,
		FundingWindow:          entity.DefaultFundingWindow,
		StatsCacheTTL:          time.Minute,
		PageSize:               DefaultPageSize,
		SweepBatchSize:         defaultSweepSize,
	}
}

// StatsCache кэширует статистику пользователя между переходами сделок.
type StatsCache interface {
	GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() (interface{}, error)) (interface{}, error)
	InvalidateUserCache(userID uuid.UUID)
}

// Metrics получает наблюдения о переходах и вызовах платёжного шлюза.
type Metrics interface {
	ObserveTransition(from, to valueobject.EscrowStatus)
	ObserveGatewayCall(operation string, err error, elapsed time.Duration)
}

// Engine — движок жизненного цикла escrow-сделок. Все изменяющие операции
// над одной сделкой выполняются последовательно.
type Engine struct {
	repo     repository.EscrowRepository
	gateway  port.PaymentGateway
	notifier port.Notifier
	clock    port.Clock
	cfg      Config

	locks   *keyedLocker
	cache   StatsCache
	metrics Metrics
}

func NewEngine(repo repository.EscrowRepository, gateway port.PaymentGateway, notifier port.Notifier, clock port.Clock, cfg Config) *Engine {
	defaults := DefaultConfig()
	if cfg.DefaultInspectionHours == 0 {
		cfg.DefaultInspectionHours = defaults.DefaultInspectionHours
	}
	if cfg.FundingWindow <= 0 {
		cfg.FundingWindow = defaults.FundingWindow
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = defaults.SweepBatchSize
	}
	if clock == nil {
		clock = port.SystemClock{}
	}

	return &Engine{
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
		clock:    clock,
		cfg:      cfg,
		locks:    newKeyedLocker(),
		cache:    noopCache{},
		metrics:  noopMetrics{},
	}
}

func (e *Engine) SetStatsCache(cache StatsCache) {
	if cache != nil {
		e.cache = cache
	}
}

func (e *Engine) SetMetrics(m Metrics) {
	if m != nil {
		e.metrics = m
	}
}

// mutation изменяет загруженную сделку и возвращает события для рассылки.
// Если mutation вернула ошибку, сделка не сохраняется.
type mutation func(tx *entity.EscrowTransaction, now time.Time) ([]port.Event, error)

// mutate загружает сделку под блокировкой, проверяет доступ участника,
// применяет ленивое истечение срока оплаты, выполняет fn и сохраняет результат.
func (e *Engine) mutate(ctx context.Context, id, actorID uuid.UUID, requireParticipant bool, fn mutation) (*entity.EscrowTransaction, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	tx, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if requireParticipant && !tx.IsParticipant(actorID) {
		return nil, apperror.ErrEscrowNotFound
	}

	now := e.clock.Now()
	if err := e.expireIfDue(ctx, tx, now); err != nil {
		return nil, err
	}

	from := tx.Status
	events, err := fn(tx, now)
	if err != nil {
		return nil, err
	}
	if err := e.repo.Update(ctx, tx); err != nil {
		return nil, err
	}

	e.afterChange(ctx, tx, from, actorID, events)
	return tx, nil
}

// expireIfDue сохраняет статус expired, если окно оплаты закончилось.
// Вызывается только под блокировкой сделки.
func (e *Engine) expireIfDue(ctx context.Context, tx *entity.EscrowTransaction, now time.Time) error {
	if !tx.IsExpired(now) {
		return nil
	}
	from := tx.Status
	if err := tx.Expire(now); err != nil {
		return err
	}
	if err := e.repo.Update(ctx, tx); err != nil {
		return err
	}
	e.afterChange(ctx, tx, from, uuid.Nil, []port.Event{newEvent(port.EventEscrowExpired, tx, nil, now)})
	return nil
}

func (e *Engine) afterChange(ctx context.Context, tx *entity.EscrowTransaction, from valueobject.EscrowStatus, actorID uuid.UUID, events []port.Event) {
	if from != tx.Status {
		e.metrics.ObserveTransition(from, tx.Status)
		logger.Escrow(tx.ID, actorID).
			WithField("from", from).
			WithField("to", tx.Status).
			Info("статус сделки изменён")
	}

	e.cache.InvalidateUserCache(tx.BuyerID)
	e.cache.InvalidateUserCache(tx.SellerID)

	for _, ev := range events {
		e.notify(ctx, ev)
	}
}

func (e *Engine) notify(ctx context.Context, ev port.Event) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, ev); err != nil {
		logger.Escrow(ev.TransactionID, ev.ActorID).
			WithError(err).
			WithField("event", ev.Type).
			Warn("не удалось отправить уведомление о сделке")
	}
}

func (e *Engine) callGateway(operation string, fn func() (port.PaymentResult, error)) (port.PaymentResult, error) {
	started := time.Now()
	result, err := fn()
	e.metrics.ObserveGatewayCall(operation, err, time.Since(started))
	if err != nil {
		return port.PaymentResult{}, apperror.Wrap(err, apperror.ErrCodePaymentFailed, "платёжная операция не выполнена")
	}
	return result, nil
}

// paymentReceipt — успешная операция шлюза внутри mutation.
type paymentReceipt struct {
	operation string
	reference string
}

// logUnsavedPayment пишет в лог операцию шлюза, которая прошла, а сделка после неё не сохранилась.
// Версия сделки при этом не меняется, и повторный запрос уйдёт в шлюз с тем же ключом идемпотентности.
func logUnsavedPayment(txID, actorID uuid.UUID, receipt *paymentReceipt, err error) {
	if err == nil || receipt == nil {
		return
	}
	logger.Escrow(txID, actorID).
		WithError(err).
		WithField("operation", receipt.operation).
		WithField("payment_reference", receipt.reference).
		Error("платёжная операция выполнена, но сделка не сохранена")
}

func newEvent(t port.EventType, tx *entity.EscrowTransaction, actorID *uuid.UUID, now time.Time) port.Event {
	return port.Event{
		Type:          t,
		TransactionID: tx.ID,
		BuyerID:       tx.BuyerID,
		SellerID:      tx.SellerID,
		ActorID:       actorID,
		Status:        string(tx.Status),
		OccurredAt:    now,
	}
}

type noopCache struct{}

func (noopCache) GetOrSet(_ context.Context, _ string, _ time.Duration, fn func() (interface{}, error)) (interface{}, error) {
	return fn()
}

func (noopCache) InvalidateUserCache(uuid.UUID) {}

type noopMetrics struct{}

func (noopMetrics) ObserveTransition(_, _ valueobject.EscrowStatus) {}
func (noopMetrics) ObserveGatewayCall(_ string, _ error, _ time.Duration) {}
