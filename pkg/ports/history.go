package ports

import (
	"context"

	"github.com/aretw0/outline/pkg/domain"
)

// HistoryLog is the append-only version history of each project.
type HistoryLog interface {
	// Append records a committed checkpoint. Records are immutable once appended.
	Append(ctx context.Context, projectID string, rec domain.VersionRecord) error

	// List returns the project's records, newest version first.
	// An unknown project yields an empty list.
	List(ctx context.Context, projectID string) ([]domain.VersionRecord, error)
}
