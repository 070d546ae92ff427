package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/outline/pkg/domain"
	"github.com/aretw0/outline/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics are the collectors updated by the metrics middleware.
type StoreMetrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewStoreMetrics creates the collectors and registers them with reg.
// A nil registerer leaves them unregistered.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outline_store_operations_total",
				Help: "Snapshot store operations by operation and result",
			},
			[]string{"op", "result"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "outline_store_duration_seconds",
				Help:    "Duration of snapshot store operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Operations, m.Duration)
	}
	return m
}

// NewMetricsMiddleware counts and times every store call.
func NewMetricsMiddleware(metrics *StoreMetrics) Middleware {
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &metricsMiddleware{next: next, metrics: metrics}
	}
}

type metricsMiddleware struct {
	next    ports.SnapshotStore
	metrics *StoreMetrics
}

func (m *metricsMiddleware) observe(op string, start time.Time, err error) {
	result := "ok"
	switch {
	case errors.Is(err, domain.ErrProjectNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	m.metrics.Operations.WithLabelValues(op, result).Inc()
	m.metrics.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metricsMiddleware) Save(ctx context.Context, projectID string, snap *domain.Snapshot) error {
	start := time.Now()
	err := m.next.Save(ctx, projectID, snap)
	m.observe("save", start, err)
	return err
}

func (m *metricsMiddleware) Load(ctx context.Context, projectID string) (*domain.Snapshot, error) {
	start := time.Now()
	snap, err := m.next.Load(ctx, projectID)
	m.observe("load", start, err)
	return snap, err
}

func (m *metricsMiddleware) Delete(ctx context.Context, projectID string) error {
	start := time.Now()
	err := m.next.Delete(ctx, projectID)
	m.observe("delete", start, err)
	return err
}

func (m *metricsMiddleware) List(ctx context.Context) ([]string, error) {
	start := time.Now()
	ids, err := m.next.List(ctx)
	m.observe("list", start, err)
	return ids, err
}
