// Package loam publishes outlines as Markdown documents in a Loam repository.
package loam

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/loam"
	"github.com/aretw0/outline/internal/presentation/document"
	"github.com/aretw0/outline/internal/presentation/graph"
	"github.com/aretw0/outline/pkg/domain"
)

// PublishedMetadata is the front matter of a published outline.
type PublishedMetadata struct {
	ID          string `json:"id" mapstructure:"id"`
	Name        string `json:"name" mapstructure:"name"`
	Version     string `json:"version" mapstructure:"version"`
	ForkedFrom  string `json:"forked_from,omitempty" mapstructure:"forked_from"`
	Status      string `json:"status" mapstructure:"status"`
	OwnerEmail  string `json:"owner_email,omitempty" mapstructure:"owner_email"`
	Steps       int    `json:"steps" mapstructure:"steps"`
	PublishedAt string `json:"published_at" mapstructure:"published_at"`
}

// Publisher implements ports.Publisher.
type Publisher struct {
	Repo *loam.TypedRepository[PublishedMetadata]
	now  func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithClock overrides the publication timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// New creates a publisher over an existing repository.
func New(repo *loam.TypedRepository[PublishedMetadata], opts ...Option) *Publisher {
	p := &Publisher{Repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open initializes an unversioned Loam repository in dir.
func Open(dir string, opts ...Option) (*Publisher, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create publish directory: %w", err)
	}
	repo, err := loam.Init(absPath, loam.WithVersioning(false))
	if err != nil {
		return nil, fmt.Errorf("failed to init publish repository: %w", err)
	}
	return New(loam.NewTypedRepository[PublishedMetadata](repo), opts...), nil
}

// Publish writes the outline document and its flowchart under the project id.
func (p *Publisher) Publish(ctx context.Context, snap *domain.Snapshot) error {
	content := document.Render(snap, nil, document.FormatMarkdown) +
		"\n```mermaid\n" + graph.GenerateMermaid(snap, nil, nil) + "```\n"

	err := p.Repo.Save(ctx, &loam.DocumentModel[PublishedMetadata]{
		ID:      snap.Meta.ID,
		Content: content,
		Data: PublishedMetadata{
			ID:          snap.Meta.ID,
			Name:        snap.Meta.Name,
			Version:     domain.ParseVersion(snap.Meta.LatestVersion).String(),
			ForkedFrom:  snap.Meta.ForkedFrom,
			Status:      string(snap.Status),
			OwnerEmail:  snap.OwnerEmail,
			Steps:       len(snap.Nodes),
			PublishedAt: p.now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("loam save failed for %s: %w", snap.Meta.ID, err)
	}
	return nil
}

// Get returns a published document.
func (p *Publisher) Get(ctx context.Context, projectID string) (*loam.DocumentModel[PublishedMetadata], error) {
	doc, err := p.Repo.Get(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loam get failed for %s: %w", projectID, err)
	}
	return doc, nil
}
