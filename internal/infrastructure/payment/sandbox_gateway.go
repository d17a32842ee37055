package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/jaevor/go-nanoid"

	"github.com/ignatzorin/escrow-backend/internal/domain/port"
)

// DeclinedMethod — способ оплаты, который песочница всегда отклоняет.
const DeclinedMethod = "sandbox_declined"

// SandboxOperation — запись о проведённой в песочнице операции.
type SandboxOperation struct {
	Kind      string
	Reference string
	Request   interface{}
}

// SandboxGateway имитирует платёжного провайдера для разработки: операции всегда
// успешны, кроме списаний способом DeclinedMethod.
type SandboxGateway struct {
	mu         sync.Mutex
	newID      func() string
	operations []SandboxOperation
}

func NewSandboxGateway() (*SandboxGateway, error) {
	idGenerator, err := nanoid.Standard(15)
	if err != nil {
		return nil, fmt.Errorf("sandbox gateway: %w", err)
	}
	return &SandboxGateway{newID: idGenerator}, nil
}

var _ port.PaymentGateway = (*SandboxGateway)(nil)

func (g *SandboxGateway) Charge(ctx context.Context, req port.ChargeRequest) (port.PaymentResult, error) {
	if req.PaymentMethod == DeclinedMethod {
		return port.PaymentResult{}, fmt.Errorf("%w: sandbox card declined", port.ErrPaymentDeclined)
	}
	return g.record(ctx, "ch", req)
}

func (g *SandboxGateway) Payout(ctx context.Context, req port.PayoutRequest) (port.PaymentResult, error) {
	return g.record(ctx, "po", req)
}

func (g *SandboxGateway) Refund(ctx context.Context, req port.RefundRequest) (port.PaymentResult, error) {
	return g.record(ctx, "re", req)
}

// Operations возвращает копию журнала операций.
func (g *SandboxGateway) Operations() []SandboxOperation {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]SandboxOperation, len(g.operations))
	copy(out, g.operations)
	return out
}

func (g *SandboxGateway) record(ctx context.Context, kind string, req interface{}) (port.PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return port.PaymentResult{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	ref := kind + "_" + g.newID()
	g.operations = append(g.operations, SandboxOperation{Kind: kind, Reference: ref, Request: req})
	return port.PaymentResult{Reference: ref, Status: statusSucceeded}, nil
}
