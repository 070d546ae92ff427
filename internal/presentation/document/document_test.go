package document_test

import (
	"testing"

	"github.com/aretw0/outline/internal/presentation/document"
	"github.com/aretw0/outline/pkg/domain"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func changeover() *domain.Snapshot {
	return &domain.Snapshot{
		Meta: domain.Meta{ID: "p1", Name: "Line changeover", LatestVersion: "1.2.3"},
		Nodes: []domain.Node{
			{ID: "root", Label: "Start", Description: "Process start", Payload: map[string]string{"site": "plant-1"}},
			{ID: "a", Label: "Prepare", Payload: map[string]string{"team": "ops"}},
			{ID: "a1", Label: "Check", Description: "Torque to spec", Payload: map[string]string{"tool": "drill"}},
			{ID: "a2"},
			{ID: "b", Label: "Run"},
			{ID: "b1", Label: "Report", JumpTargetID: "a"},
		},
		Edges: []domain.Edge{
			{ID: "e1", Source: "root", Target: "a"},
			{ID: "e2", Source: "a", Target: "a1"},
			{ID: "e3", Source: "root", Target: "b"},
			{ID: "e4", Source: "a", Target: "a2"},
			{ID: "e5", Source: "b", Target: "b1"},
		},
	}
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestRender_Golden(t *testing.T) {
	tests := []struct {
		name      string
		format    document.Format
		collapsed domain.CollapseSet
	}{
		{"text", document.FormatText, nil},
		{"text_collapsed", document.FormatText, domain.NewCollapseSet("a")},
		{"markdown", document.FormatMarkdown, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := document.Render(changeover(), tt.collapsed, tt.format)
			newGoldie(t).Assert(t, tt.name, []byte(got))
		})
	}
}

func TestRender_UnknownJumpTarget(t *testing.T) {
	snap := changeover()
	snap.Nodes[5].JumpTargetID = "gone"

	got := document.Render(snap, nil, document.FormatText)
	assert.Contains(t, got, "2.1 Report {site=plant-1} -> ?\n")
}

func TestParseFormat(t *testing.T) {
	f, err := document.ParseFormat("md")
	require.NoError(t, err)
	assert.Equal(t, document.FormatMarkdown, f)

	f, err = document.ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, document.FormatText, f)

	_, err = document.ParseFormat("pdf")
	assert.Error(t, err)
}
