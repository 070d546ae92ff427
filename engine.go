package outline

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/outline/internal/logging"
	"github.com/aretw0/outline/pkg/adapters/memory"
	"github.com/aretw0/outline/pkg/domain"
	"github.com/aretw0/outline/pkg/ports"
	"github.com/aretw0/outline/pkg/session"
)

// ErrClosed is returned by Open after Close.
var ErrClosed = errors.New("engine closed")

// Engine is the high-level entry point of the library.
// It owns one Session and one Autosaver per opened project until the project is
// released, evicted as idle, or the engine is closed.
type Engine struct {
	store     ports.SnapshotStore
	history   ports.HistoryLog
	locker    ports.DistributedLocker
	publisher ports.Publisher
	editor    domain.Editor
	interval  time.Duration
	idle      time.Duration
	logger    *slog.Logger
	extra     []session.SessionOption

	manager *session.Manager

	mu       sync.Mutex
	sessions map[string]*openSession
	closed   bool

	stopJanitor chan struct{}
	janitorDone chan struct{}

	subMu  sync.RWMutex
	subs   map[int]subscription
	nextID int
}

type openSession struct {
	session   *session.Session
	autosaver *session.Autosaver
	lastUsed  atomic.Int64 // unix nanos
}

func (o *openSession) touch() {
	o.lastUsed.Store(time.Now().UnixNano())
}

type subscription struct {
	projectID string
	fn        session.Observer
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the snapshot store. Default: in-memory.
func WithStore(store ports.SnapshotStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithHistory sets the version history log. Default: in-memory.
func WithHistory(history ports.HistoryLog) Option {
	return func(e *Engine) {
		e.history = history
	}
}

// WithLocker enables distributed locking of store operations.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithPublisher receives every published fork.
func WithPublisher(p ports.Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithEditor sets the identity recorded on committed versions.
func WithEditor(editor domain.Editor) Option {
	return func(e *Engine) {
		e.editor = editor
	}
}

// WithAutosaveInterval sets the autosave period. Zero or negative disables autosave.
func WithAutosaveInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.interval = d
	}
}

// WithIdleTimeout releases sessions neither opened nor changed for d, flushing
// them like Close does. A caller still holding a released session must Open the
// project again for its edits to be autosaved. Zero disables eviction.
func WithIdleTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.idle = d
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSessionOptions appends options applied to every opened session.
func WithSessionOptions(opts ...session.SessionOption) Option {
	return func(e *Engine) {
		e.extra = append(e.extra, opts...)
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		interval: session.DefaultAutosaveInterval,
		logger:   logging.NewNop(),
		sessions: make(map[string]*openSession),
		subs:     make(map[int]subscription),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.history == nil {
		e.history = memory.NewHistory()
	}

	mopts := []session.Option{
		session.WithHistory(e.history),
		session.WithLogger(e.logger),
	}
	if e.locker != nil {
		mopts = append(mopts, session.WithLocker(e.locker))
	}
	e.manager = session.NewManager(e.store, mopts...)

	if e.idle > 0 {
		e.stopJanitor = make(chan struct{})
		e.janitorDone = make(chan struct{})
		go e.evictIdle(max(e.idle/2, time.Millisecond))
	}
	return e
}

// Manager exposes store and history access without opening a session.
func (e *Engine) Manager() *session.Manager {
	return e.manager
}

// Open returns the project's session, loading it (or starting a new project) on
// first use. The autosaver starts with the session.
func (e *Engine) Open(ctx context.Context, projectID string) (*session.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	if entry, ok := e.sessions[projectID]; ok {
		entry.touch()
		return entry.session, nil
	}

	entry := &openSession{}
	opts := []session.SessionOption{
		session.WithEditor(e.editor),
		session.WithObserver(func(ev session.Event) {
			entry.touch()
			e.broadcast(projectID, ev)
		}),
	}
	if e.publisher != nil {
		opts = append(opts, session.WithPublisher(e.publisher))
	}
	opts = append(opts, e.extra...)

	s, err := session.Open(ctx, e.manager, projectID, opts...)
	if err != nil {
		return nil, err
	}

	entry.session = s
	entry.touch()
	if e.interval > 0 {
		entry.autosaver = session.NewAutosaver(s, e.interval)
		// The autosaver outlives the request that opened the session.
		entry.autosaver.Start(context.WithoutCancel(ctx))
	}
	e.sessions[projectID] = entry
	e.logger.Debug("project opened", "project_id", projectID)
	return s, nil
}

// View returns a read-only view of the project without registering a session.
// An open session is returned as is. Otherwise the stored snapshot is loaded,
// or a default one for an unknown project, and nothing is ever written for it.
func (e *Engine) View(ctx context.Context, projectID string) (session.View, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	entry, ok := e.sessions[projectID]
	e.mu.Unlock()
	if ok {
		entry.touch()
		return entry.session, nil
	}
	s, err := session.Open(ctx, e.manager, projectID, e.extra...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Release closes one project's session: its autosaver stops and, with autosave
// enabled, unsaved changes are flushed as a patch version. The next Open loads
// the project again. Releasing a project that is not open is a no-op.
func (e *Engine) Release(ctx context.Context, projectID string) error {
	e.mu.Lock()
	entry, ok := e.sessions[projectID]
	delete(e.sessions, projectID)
	e.mu.Unlock()
	if !ok {
		return nil
	}
	return e.shutdown(ctx, projectID, entry)
}

func (e *Engine) shutdown(ctx context.Context, projectID string, entry *openSession) error {
	if entry.autosaver != nil {
		entry.autosaver.Stop()
	}
	if e.interval <= 0 {
		return nil
	}
	if _, err := entry.session.Autosave(ctx); err != nil {
		e.logger.Error("final save failed", "project_id", projectID, "err", err)
		return err
	}
	return nil
}

func (e *Engine) evictIdle(every time.Duration) {
	defer close(e.janitorDone)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopJanitor:
			return
		case now := <-ticker.C:
			cutoff := now.Add(-e.idle).UnixNano()
			e.mu.Lock()
			idle := make(map[string]*openSession)
			for id, entry := range e.sessions {
				if entry.lastUsed.Load() < cutoff {
					idle[id] = entry
					delete(e.sessions, id)
				}
			}
			e.mu.Unlock()
			for id, entry := range idle {
				e.logger.Debug("releasing idle project", "project_id", id)
				if err := e.shutdown(context.Background(), id, entry); err != nil {
					e.readopt(id, entry)
				}
			}
		}
	}
}

// readopt puts back a session whose release flush failed, so its edits are
// retried by a fresh autosaver instead of being dropped.
func (e *Engine) readopt(projectID string, entry *openSession) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, taken := e.sessions[projectID]; taken || e.closed {
		e.logger.Warn("unsaved edits dropped after failed release", "project_id", projectID)
		return
	}
	entry.touch()
	entry.autosaver = session.NewAutosaver(entry.session, e.interval)
	entry.autosaver.Start(context.Background())
	e.sessions[projectID] = entry
}

// Projects lists stored project ids in lexical order.
func (e *Engine) Projects(ctx context.Context) ([]string, error) {
	ids, err := e.manager.List(ctx)
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)
	return ids, nil
}

// Inspect loads a stored project without opening a session.
func (e *Engine) Inspect(ctx context.Context, projectID string) (*domain.Snapshot, error) {
	return e.manager.Load(ctx, projectID)
}

// History lists a project's committed versions, newest first.
func (e *Engine) History(ctx context.Context, projectID string) ([]domain.VersionRecord, error) {
	return e.manager.History(ctx, projectID)
}

// Delete closes the project's session without saving and removes it from the store.
// Its history is kept.
func (e *Engine) Delete(ctx context.Context, projectID string) error {
	e.mu.Lock()
	entry, ok := e.sessions[projectID]
	delete(e.sessions, projectID)
	e.mu.Unlock()

	if ok && entry.autosaver != nil {
		entry.autosaver.Stop()
	}
	return e.manager.Delete(ctx, projectID)
}

// Subscribe registers fn for events of one project, or of every project when
// projectID is empty. The returned func cancels the subscription.
func (e *Engine) Subscribe(projectID string, fn session.Observer) (cancel func()) {
	e.subMu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = subscription{projectID: projectID, fn: fn}
	e.subMu.Unlock()

	return func() {
		e.subMu.Lock()
		delete(e.subs, id)
		e.subMu.Unlock()
	}
}

func (e *Engine) broadcast(projectID string, ev session.Event) {
	e.subMu.RLock()
	defer e.subMu.RUnlock()
	for _, sub := range e.subs {
		if sub.projectID == "" || sub.projectID == projectID {
			sub.fn(ev)
		}
	}
}

// Close stops every autosaver. With autosave enabled, sessions with unsaved
// changes are then flushed as a final patch version. Open fails afterwards.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	sessions := e.sessions
	e.sessions = make(map[string]*openSession)
	e.mu.Unlock()

	if e.stopJanitor != nil {
		close(e.stopJanitor)
		<-e.janitorDone
	}

	var errs []error
	for id, entry := range sessions {
		if err := e.shutdown(ctx, id, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
