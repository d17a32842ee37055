package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ignatzorin/escrow-backend/internal/domain/valueobject"
)

// EscrowMetrics содержит метрики движка сделок.
type EscrowMetrics struct {
	// Переходы статусов сделок
	TransitionsTotal *prometheus.CounterVec

	// Вызовы платёжного шлюза
	GatewayCallsTotal   *prometheus.CounterVec
	GatewayCallDuration *prometheus.HistogramVec
}

// NewEscrowMetrics регистрирует метрики в reg. Для глобального реестра передайте
// prometheus.DefaultRegisterer.
func NewEscrowMetrics(reg prometheus.Registerer) *EscrowMetrics {
	factory := promauto.With(reg)
	return &EscrowMetrics{
		TransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "escrow",
			Name:      "transitions_total",
			Help:      "Количество переходов статусов сделок",
		}, []string{"from", "to"}),
		GatewayCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "escrow",
			Name:      "gateway_calls_total",
			Help:      "Количество вызовов платёжного шлюза по операциям и результату",
		}, []string{"operation", "outcome"}),
		GatewayCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "escrow",
			Name:      "gateway_call_duration_seconds",
			Help:      "Длительность вызовов платёжного шлюза",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (m *EscrowMetrics) ObserveTransition(from, to valueobject.EscrowStatus) {
	m.TransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}

func (m *EscrowMetrics) ObserveGatewayCall(operation string, err error, elapsed time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.GatewayCallsTotal.WithLabelValues(operation, outcome).Inc()
	m.GatewayCallDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
