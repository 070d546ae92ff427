package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/outline/pkg/domain"
	"github.com/aretw0/outline/pkg/ports"
	"github.com/sony/gobreaker"
)

// BreakerConfig controls when the store circuit opens.
type BreakerConfig struct {
	Name string
	// MaxFailures is the number of consecutive failures that open the circuit.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before probing again.
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewBreakerMiddleware fails store calls fast while the backend keeps failing.
// A missing project is a normal answer and never counts as a failure.
// Calls rejected by an open circuit return an error wrapping gobreaker.ErrOpenState.
func NewBreakerMiddleware(config BreakerConfig) Middleware {
	if config.Name == "" {
		config.Name = "snapshot-store"
	}
	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next ports.SnapshotStore) ports.SnapshotStore {
		cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        config.Name,
			MaxRequests: 1,
			Timeout:     config.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= config.MaxFailures
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, domain.ErrProjectNotFound)
			},
		})
		return &breakerMiddleware{next: next, cb: cb}
	}
}

type breakerMiddleware struct {
	next ports.SnapshotStore
	cb   *gobreaker.CircuitBreaker
}

func (m *breakerMiddleware) Save(ctx context.Context, projectID string, snap *domain.Snapshot) error {
	_, err := m.cb.Execute(func() (any, error) {
		return nil, m.next.Save(ctx, projectID, snap)
	})
	return err
}

func (m *breakerMiddleware) Load(ctx context.Context, projectID string) (*domain.Snapshot, error) {
	out, err := m.cb.Execute(func() (any, error) {
		return m.next.Load(ctx, projectID)
	})
	if err != nil {
		return nil, err
	}
	return out.(*domain.Snapshot), nil
}

func (m *breakerMiddleware) Delete(ctx context.Context, projectID string) error {
	_, err := m.cb.Execute(func() (any, error) {
		return nil, m.next.Delete(ctx, projectID)
	})
	return err
}

func (m *breakerMiddleware) List(ctx context.Context) ([]string, error) {
	out, err := m.cb.Execute(func() (any, error) {
		return m.next.List(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.([]string), nil
}
