package ports

import (
	"context"

	"github.com/aretw0/outline/pkg/domain"
)

// Publisher receives the snapshot of a freshly published lineage.
type Publisher interface {
	Publish(ctx context.Context, snap *domain.Snapshot) error
}
