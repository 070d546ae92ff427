package domain

import "time"

// DefaultProjectName is the name of a project created from scratch.
const DefaultProjectName = "Untitled procedure"

// ProjectStatus is the lifecycle stage recorded by the last checkpoint.
type ProjectStatus string

const (
	StatusDraft     ProjectStatus = "draft"
	StatusArchived  ProjectStatus = "archived"
	StatusPublished ProjectStatus = "published"
)

// Meta identifies a project and its current version.
type Meta struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	LatestVersion string `json:"latest_version" yaml:"latest_version"`
	// ForkedFrom names the project a published lineage was seeded from.
	ForkedFrom string `json:"forked_from,omitempty" yaml:"forked_from,omitempty"`
}

// Snapshot is a full, independent copy of an outline at one point in time.
// Snapshots are values: operations return modified copies.
type Snapshot struct {
	Meta       Meta          `json:"meta" yaml:"meta"`
	Nodes      []Node        `json:"nodes" yaml:"nodes"`
	Edges      []Edge        `json:"edges" yaml:"edges"`
	UpdatedAt  time.Time     `json:"updated_at,omitzero" yaml:"updated_at,omitempty"`
	OwnerID    string        `json:"owner_id,omitempty" yaml:"owner_id,omitempty"`
	OwnerEmail string        `json:"owner_email,omitempty" yaml:"owner_email,omitempty"`
	Status     ProjectStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// NewSnapshot returns the default content of a new project: one root step at
// version 1.0.0.
func NewSnapshot(projectID string) *Snapshot {
	return &Snapshot{
		Meta: Meta{
			ID:            projectID,
			Name:          DefaultProjectName,
			LatestVersion: InitialVersion.String(),
		},
		Nodes: []Node{{
			ID:          DefaultRootID,
			Label:       DefaultRootLabel,
			Description: DefaultRootDescription,
		}},
		Edges:  []Edge{},
		Status: StatusDraft,
	}
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Nodes = cloneNodes(s.Nodes)
	out.Edges = cloneEdges(s.Edges)
	return &out
}

// Graph returns a mutable graph over a copy of the snapshot's content.
func (s *Snapshot) Graph() *Graph {
	return NewGraph(s.Nodes, s.Edges)
}

// WithGraph returns a copy whose nodes and edges come from g.
func (s *Snapshot) WithGraph(g *Graph) *Snapshot {
	out := s.Clone()
	out.Nodes = g.Nodes()
	out.Edges = g.Edges()
	return out
}

// Annotated returns a copy with the denormalized ComputedCode set on every node.
// Unreachable nodes get an empty code.
func (s *Snapshot) Annotated() *Snapshot {
	out := s.Clone()
	codes := Codes(out.Nodes, out.Edges)
	for i := range out.Nodes {
		out.Nodes[i].ComputedCode = codes[out.Nodes[i].ID]
	}
	return out
}

// Editor identifies who committed a checkpoint.
type Editor struct {
	ID    string `json:"id,omitempty" yaml:"id,omitempty"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// VersionRecord is one immutable entry of a project's version history.
type VersionRecord struct {
	Version   string         `json:"version"`
	Ordinal   int64          `json:"ordinal"`
	Kind      CheckpointKind `json:"kind"`
	Snapshot  *Snapshot      `json:"snapshot"`
	ChangeLog []string       `json:"change_log"`
	CreatedAt time.Time      `json:"created_at"`
	Editor    Editor         `json:"editor"`
	Remark    string         `json:"remark,omitempty"`
}

// NewestFirst orders history records by version, newest first, and by
// creation time for equal versions. Use it with slices.SortStableFunc.
func NewestFirst(a, b VersionRecord) int {
	if c := ParseVersion(b.Version).Compare(ParseVersion(a.Version)); c != 0 {
		return c
	}
	return b.CreatedAt.Compare(a.CreatedAt)
}

// NewVersionRecord builds the history entry for a committed snapshot.
func NewVersionRecord(s *Snapshot, kind CheckpointKind, changeLog []string, editor Editor, remark string, at time.Time) VersionRecord {
	v := ParseVersion(s.Meta.LatestVersion)
	return VersionRecord{
		Version:   v.String(),
		Ordinal:   v.Ordinal(),
		Kind:      kind,
		Snapshot:  s.Annotated(),
		ChangeLog: append([]string{}, changeLog...),
		CreatedAt: at,
		Editor:    editor,
		Remark:    remark,
	}
}
