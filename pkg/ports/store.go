package ports

import (
	"context"

	"github.com/aretw0/outline/pkg/domain"
)

// SnapshotStore persists the current snapshot of each project, keyed by project id.
type SnapshotStore interface {
	// Save replaces the stored snapshot of the project.
	Save(ctx context.Context, projectID string, snap *domain.Snapshot) error

	// Load returns the stored snapshot.
	// Returns an error wrapping domain.ErrProjectNotFound if the project does not exist.
	Load(ctx context.Context, projectID string) (*domain.Snapshot, error)

	// Delete removes the project. Deleting an unknown project is not an error.
	Delete(ctx context.Context, projectID string) error

	// List returns the ids of all stored projects.
	List(ctx context.Context) ([]string, error)
}
