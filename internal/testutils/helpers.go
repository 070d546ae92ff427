// Package testutils holds fixtures shared by adapter tests.
package testutils

import (
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/aretw0/outline/pkg/domain"
	"github.com/stretchr/testify/require"
)

// SetupTestRepo creates a temporary directory and initializes an unversioned
// Loam repository in it. It fails the test immediately on error.
func SetupTestRepo(t *testing.T, opts ...loam.Option) (string, core.Repository) {
	t.Helper()

	absPath, err := filepath.Abs(t.TempDir())
	require.NoError(t, err, "Failed to get absolute path for temp dir")

	opts = append([]loam.Option{loam.WithVersioning(false)}, opts...)
	repo, err := loam.Init(absPath, opts...)
	require.NoError(t, err, "Failed to init loam repo")

	return absPath, repo
}

// SampleSnapshot returns a small outline:
//
//	root  0    Start (site=plant-1)
//	a     1    Prepare (team=ops)
//	a1    1.1  Check
//	b     2    Run
//	b1    2.1  Report, jumps to a
func SampleSnapshot(projectID string) *domain.Snapshot {
	snap := domain.NewSnapshot(projectID)
	snap.Meta.Name = "Line changeover"
	snap.Nodes = []domain.Node{
		{ID: "root", Label: "Start", Payload: map[string]string{"site": "plant-1"}},
		{ID: "a", Label: "Prepare", Payload: map[string]string{"team": "ops"}},
		{ID: "a1", Label: "Check"},
		{ID: "b", Label: "Run"},
		{ID: "b1", Label: "Report", JumpTargetID: "a"},
	}
	snap.Edges = []domain.Edge{
		{ID: "e1", Source: "root", Target: "a"},
		{ID: "e2", Source: "a", Target: "a1"},
		{ID: "e3", Source: "root", Target: "b"},
		{ID: "e4", Source: "b", Target: "b1"},
	}
	return snap
}
