package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/outline/pkg/domain"
	"github.com/aretw0/outline/pkg/ports"
	"github.com/google/uuid"
)

// Session is the single mutator of one project's outline.
//
// The current snapshot lives in an atomic cell: readers, including the autosave
// tick, always observe the latest committed mutation. Mutations are serialized
// and never mutate a published snapshot in place.
type Session struct {
	id      string
	manager *Manager
	logger  *slog.Logger

	current   atomic.Pointer[domain.Snapshot]
	persisted atomic.Pointer[domain.Snapshot]
	status    atomic.Pointer[Status]
	edited    atomic.Bool // set by the first accepted mutation

	mu     sync.Mutex // serializes mutations
	saveMu sync.Mutex // serializes persist attempts

	editor    domain.Editor
	publisher ports.Publisher
	observers []Observer
	now       func() time.Time
	newID     func() string
}

// View is the read-only surface of a project.
type View interface {
	ID() string
	Snapshot() *domain.Snapshot
	Status() Status
	Dirty() bool
	Changes() []string
	Outline(collapsed domain.CollapseSet) []domain.OutlineNode
	Tree() []domain.TreeEntry
}

var _ View = (*Session)(nil)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithEditor sets the identity recorded on committed versions.
func WithEditor(editor domain.Editor) SessionOption {
	return func(s *Session) {
		s.editor = editor
	}
}

// WithPublisher receives snapshots forked by publish checkpoints.
func WithPublisher(p ports.Publisher) SessionOption {
	return func(s *Session) {
		s.publisher = p
	}
}

// WithObserver registers a callback for session events.
func WithObserver(o Observer) SessionOption {
	return func(s *Session) {
		s.observers = append(s.observers, o)
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

// WithIDGenerator overrides the generator used for new node and project ids.
func WithIDGenerator(gen func() string) SessionOption {
	return func(s *Session) {
		s.newID = gen
	}
}

// Open loads the project, or starts a new one when it does not exist yet.
func Open(ctx context.Context, m *Manager, projectID string, opts ...SessionOption) (*Session, error) {
	if projectID == "" {
		return nil, &domain.ValidationError{Field: "project_id", Reason: "must not be empty"}
	}
	snap, created, err := m.LoadOrInit(ctx, projectID)
	if err != nil {
		return nil, err
	}
	s := &Session{
		id:      projectID,
		manager: m,
		logger:  m.logger.With("project_id", projectID),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Stored snapshots may carry audit codes; they are never authoritative.
	for i := range snap.Nodes {
		snap.Nodes[i].ComputedCode = ""
	}
	snap.Meta.ID = projectID
	s.current.Store(snap)
	if !created {
		s.persisted.Store(snap.Clone())
	}
	s.status.Store(&Status{State: SaveIdle, Version: snap.Meta.LatestVersion})
	s.logger.Debug("session opened", "created", created, "version", snap.Meta.LatestVersion)
	return s, nil
}

// ID returns the project id.
func (s *Session) ID() string { return s.id }

// Snapshot returns a copy of the current snapshot.
func (s *Session) Snapshot() *domain.Snapshot {
	return s.current.Load().Clone()
}

// Persisted returns a copy of the last successfully persisted snapshot, or nil.
func (s *Session) Persisted() *domain.Snapshot {
	return s.persisted.Load().Clone()
}

// Status returns the latest persist status.
func (s *Session) Status() Status {
	return *s.status.Load()
}

// Outline returns the visible nodes under the collapse set.
func (s *Session) Outline(collapsed domain.CollapseSet) []domain.OutlineNode {
	cur := s.current.Load()
	return domain.Process(cur.Nodes, cur.Edges, collapsed)
}

// Tree returns the full renderable hierarchy.
func (s *Session) Tree() []domain.TreeEntry {
	cur := s.current.Load()
	return domain.BuildTree(domain.Process(cur.Nodes, cur.Edges, nil), cur.Edges)
}

// Changes describes the unsaved changes since the last persist.
func (s *Session) Changes() []string {
	return domain.ChangeLog(s.persisted.Load(), s.current.Load())
}

// Dirty reports whether there are unsaved changes.
func (s *Session) Dirty() bool {
	return domain.HasContentChanged(s.persisted.Load(), s.current.Load())
}

// mutate applies fn to a private copy of the current snapshot and publishes it
// when fn succeeds. On error the current snapshot is untouched.
func (s *Session) mutate(op string, fn func(snap *domain.Snapshot) error) error {
	s.mu.Lock()
	next := s.current.Load().Clone()
	if err := fn(next); err != nil {
		s.mu.Unlock()
		s.logger.Warn("mutation rejected", "op", op, "err", err)
		return err
	}
	s.current.Store(next)
	s.edited.Store(true)
	s.mu.Unlock()

	s.emit(Event{Type: EventChanged, ProjectID: s.id, Version: next.Meta.LatestVersion})
	return nil
}

func (s *Session) mutateGraph(op string, fn func(g *domain.Graph) error) error {
	return s.mutate(op, func(snap *domain.Snapshot) error {
		g := snap.Graph()
		if err := fn(g); err != nil {
			return err
		}
		snap.Nodes, snap.Edges = g.Nodes(), g.Edges()
		return nil
	})
}

// CreateRoot adds the default root to an empty outline.
func (s *Session) CreateRoot() error {
	return s.mutateGraph("create root", func(g *domain.Graph) error {
		return g.AddRoot(domain.Node{
			ID:          domain.DefaultRootID,
			Label:       domain.DefaultRootLabel,
			Description: domain.DefaultRootDescription,
		})
	})
}

// AddChild appends n under parentID. A missing id is generated and a missing
// label defaults to domain.DefaultNodeLabel. It returns the stored node.
func (s *Session) AddChild(parentID string, n domain.Node) (domain.Node, error) {
	if n.ID == "" {
		n.ID = s.newID()
	}
	if n.Label == "" {
		n.Label = domain.DefaultNodeLabel
	}
	n.ComputedCode = ""
	err := s.mutateGraph("add child", func(g *domain.Graph) error {
		_, err := g.AddChild(parentID, n)
		return err
	})
	return n, err
}

// UpdateNode edits a node in place.
func (s *Session) UpdateNode(id string, p domain.NodePatch) error {
	return s.mutateGraph("update node", func(g *domain.Graph) error {
		return g.UpdateNode(id, p)
	})
}

// DeleteNode removes a node. With subtree set its descendants go too; otherwise
// they are orphaned.
func (s *Session) DeleteNode(id string, subtree bool) error {
	return s.mutateGraph("delete node", func(g *domain.Graph) error {
		if subtree {
			return g.DeleteSubtree(id)
		}
		return g.DeleteNode(id)
	})
}

// Reorder applies a drag intent. An invariant violation leaves the outline unchanged.
func (s *Session) Reorder(intent domain.DragIntent) error {
	return s.mutateGraph("reorder", func(g *domain.Graph) error {
		edges, err := domain.Reorder(g.Nodes(), g.Edges(), intent, nil)
		if err != nil {
			return err
		}
		g.SetEdges(edges)
		return nil
	})
}

// Rename changes the project name.
func (s *Session) Rename(name string) error {
	return s.mutate("rename", func(snap *domain.Snapshot) error {
		if name == "" {
			return &domain.ValidationError{Field: "name", Reason: "must not be empty"}
		}
		snap.Meta.Name = name
		return nil
	})
}

// Import replaces the whole outline. Nothing is applied unless nodes and edges
// are present and form a valid forest. A non-empty name renames the project.
func (s *Session) Import(nodes []domain.Node, edges []domain.Edge, name string) error {
	return s.mutate("import", func(snap *domain.Snapshot) error {
		if nodes == nil {
			return &domain.ValidationError{Field: "nodes", Reason: "must be present"}
		}
		if edges == nil {
			return &domain.ValidationError{Field: "edges", Reason: "must be present"}
		}
		g := domain.NewGraph(nil, nil)
		if err := g.Replace(nodes, edges); err != nil {
			return err
		}
		snap.Nodes, snap.Edges = g.Nodes(), g.Edges()
		for i := range snap.Nodes {
			snap.Nodes[i].ComputedCode = ""
		}
		if name != "" {
			snap.Meta.Name = name
		}
		return nil
	})
}

// Checkpoint commits the current snapshot as a new version of the given kind.
// Patch and minor checkpoints bump this project's version. A major checkpoint
// publishes: it forks a new project seeded from the current content and
// returns that project's first record, leaving this session on its own lineage.
// Errors are returned immediately and never retried.
func (s *Session) Checkpoint(ctx context.Context, kind domain.CheckpointKind, remark string) (domain.VersionRecord, error) {
	if kind == domain.KindMajor {
		return s.publish(ctx, remark)
	}
	rec, _, err := s.persist(ctx, kind, remark, false)
	return rec, err
}

// Autosave commits a patch version only when the current snapshot differs from
// the last persisted one. A new project nobody has edited is never autosaved.
// It reports whether anything was written.
func (s *Session) Autosave(ctx context.Context) (bool, error) {
	_, saved, err := s.persist(ctx, domain.KindPatch, "autosave", true)
	return saved, err
}

func (s *Session) persist(ctx context.Context, kind domain.CheckpointKind, remark string, onlyIfChanged bool) (domain.VersionRecord, bool, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	cur := s.current.Load()
	prev := s.persisted.Load()
	changeLog := domain.ChangeLog(prev, cur)
	if onlyIfChanged && (len(changeLog) == 0 || prev == nil && !s.edited.Load()) {
		return domain.VersionRecord{}, false, nil
	}

	now := s.now()
	next := cur.Clone()
	next.Meta.LatestVersion = kind.Bump(domain.ParseVersion(cur.Meta.LatestVersion)).String()
	next.UpdatedAt = now
	next.Status = kind.Status()
	s.stampOwner(next)

	rec := domain.NewVersionRecord(next, kind, changeLog, s.editor, remark, now)
	s.setStatus(Status{State: SaveSaving, Version: cur.Meta.LatestVersion, At: now})

	if err := s.manager.Commit(ctx, s.id, next.Annotated(), rec); err != nil {
		s.fail(err, now)
		return domain.VersionRecord{}, false, err
	}

	s.persisted.Store(next)
	// Carry the committed version into the live snapshot without touching edits
	// made while the commit was in flight.
	s.mu.Lock()
	live := s.current.Load().Clone()
	live.Meta.LatestVersion = next.Meta.LatestVersion
	live.UpdatedAt = next.UpdatedAt
	live.Status = next.Status
	live.OwnerID, live.OwnerEmail = next.OwnerID, next.OwnerEmail
	s.current.Store(live)
	s.mu.Unlock()

	s.setStatus(Status{State: SaveSaved, Version: next.Meta.LatestVersion, At: now})
	s.logger.Info("version committed", "version", next.Meta.LatestVersion, "kind", kind, "changes", len(changeLog))
	s.emit(Event{Type: EventSaved, ProjectID: s.id, Version: next.Meta.LatestVersion, ChangeLog: changeLog})
	return rec, true, nil
}

func (s *Session) publish(ctx context.Context, remark string) (domain.VersionRecord, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	cur := s.current.Load()
	now := s.now()

	fork := cur.Clone()
	fork.Meta.ID = s.newID()
	fork.Meta.ForkedFrom = s.id
	fork.Meta.LatestVersion = domain.ParseVersion(cur.Meta.LatestVersion).NextMajor().String()
	fork.UpdatedAt = now
	fork.Status = domain.StatusPublished
	s.stampOwner(fork)

	changeLog := []string{fmt.Sprintf("published from project %s at version %s", s.id, cur.Meta.LatestVersion)}
	rec := domain.NewVersionRecord(fork, domain.KindMajor, changeLog, s.editor, remark, now)

	if err := s.manager.Commit(ctx, fork.Meta.ID, fork.Annotated(), rec); err != nil {
		s.fail(err, now)
		return domain.VersionRecord{}, err
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, fork.Annotated()); err != nil {
			perr := &domain.PersistenceError{Op: "publish", ProjectID: fork.Meta.ID, Err: err}
			s.fail(perr, now)
			return domain.VersionRecord{}, perr
		}
	}

	s.setStatus(Status{State: SaveSaved, Version: cur.Meta.LatestVersion, At: now})
	s.logger.Info("project published", "fork_id", fork.Meta.ID, "version", fork.Meta.LatestVersion)
	s.emit(Event{Type: EventPublished, ProjectID: fork.Meta.ID, Version: fork.Meta.LatestVersion, ChangeLog: changeLog})
	return rec, nil
}

func (s *Session) stampOwner(snap *domain.Snapshot) {
	if snap.OwnerID == "" {
		snap.OwnerID = s.editor.ID
	}
	if snap.OwnerEmail == "" {
		snap.OwnerEmail = s.editor.Email
	}
}

func (s *Session) fail(err error, at time.Time) {
	s.setStatus(Status{State: SaveError, Version: s.current.Load().Meta.LatestVersion, Error: err.Error(), At: at})
	s.logger.Error("persist failed", "err", err)
	s.emit(Event{Type: EventFailed, ProjectID: s.id, Error: err.Error()})
}

func (s *Session) setStatus(st Status) {
	s.status.Store(&st)
}

func (s *Session) emit(e Event) {
	for _, o := range s.observers {
		o(e)
	}
}
