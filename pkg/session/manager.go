package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/outline/internal/logging"
	"github.com/aretw0/outline/pkg/domain"
	"github.com/aretw0/outline/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates project access, serializing store operations per project.
// Unused locks are garbage collected by reference counting.
type Manager struct {
	store   ports.SnapshotStore
	history ports.HistoryLog

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithHistory sets the log that receives committed versions.
func WithHistory(history ports.HistoryLog) Option {
	return func(m *Manager) {
		m.history = history
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over the given store.
func NewManager(store ports.SnapshotStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST lock entry.mu and call release after unlocking.
func (m *Manager) acquire(projectID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[projectID]
	if !exists {
		entry = &lockEntry{}
		m.locks[projectID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and drops the entry at zero.
func (m *Manager) release(projectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[projectID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, projectID)
	}
}

// Load returns the stored snapshot. Unknown projects yield an error wrapping
// domain.ErrProjectNotFound; store failures a *domain.PersistenceError.
func (m *Manager) Load(ctx context.Context, projectID string) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := m.WithLock(ctx, projectID, func(ctx context.Context) error {
		var err error
		snap, err = m.store.Load(ctx, projectID)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			return nil, err
		}
		return nil, &domain.PersistenceError{Op: "load", ProjectID: projectID, Err: err}
	}
	return snap, nil
}

// LoadOrInit loads the project or, when it does not exist, returns a fresh default
// snapshot. Nothing is written: the new project is persisted by its first checkpoint.
func (m *Manager) LoadOrInit(ctx context.Context, projectID string) (snap *domain.Snapshot, created bool, err error) {
	snap, err = m.Load(ctx, projectID)
	if errors.Is(err, domain.ErrProjectNotFound) {
		m.logger.Debug("project not found, starting new", "project_id", projectID)
		return domain.NewSnapshot(projectID), true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return snap, false, nil
}

// Save persists the snapshot without recording history.
func (m *Manager) Save(ctx context.Context, projectID string, snap *domain.Snapshot) error {
	err := m.WithLock(ctx, projectID, func(ctx context.Context) error {
		return m.store.Save(ctx, projectID, snap)
	})
	if err != nil {
		return &domain.PersistenceError{Op: "save", ProjectID: projectID, Err: err}
	}
	return nil
}

// Commit persists the snapshot and appends rec to the history log, if any.
// A failed append does not undo the snapshot write.
func (m *Manager) Commit(ctx context.Context, projectID string, snap *domain.Snapshot, rec domain.VersionRecord) error {
	return m.WithLock(ctx, projectID, func(ctx context.Context) error {
		if err := m.store.Save(ctx, projectID, snap); err != nil {
			return &domain.PersistenceError{Op: "save", ProjectID: projectID, Err: err}
		}
		if m.history == nil {
			return nil
		}
		if err := m.history.Append(ctx, projectID, rec); err != nil {
			return &domain.PersistenceError{Op: "append history", ProjectID: projectID, Err: err}
		}
		return nil
	})
}

// History lists the project's committed versions, newest first.
func (m *Manager) History(ctx context.Context, projectID string) ([]domain.VersionRecord, error) {
	if m.history == nil {
		return []domain.VersionRecord{}, nil
	}
	recs, err := m.history.List(ctx, projectID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list history", ProjectID: projectID, Err: err}
	}
	return recs, nil
}

// Delete removes the project from the store. History is kept.
func (m *Manager) Delete(ctx context.Context, projectID string) error {
	return m.WithLock(ctx, projectID, func(ctx context.Context) error {
		return m.store.Delete(ctx, projectID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying snapshot store.
func (m *Manager) Store() ports.SnapshotStore {
	return m.store
}

// WithLock executes fn while holding the project's lock.
func (m *Manager) WithLock(ctx context.Context, projectID string, fn func(context.Context) error) error {
	entry := m.acquire(projectID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(projectID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, projectID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"project_id", projectID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
