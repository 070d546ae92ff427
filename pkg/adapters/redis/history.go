package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/aretw0/outline/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// History implements ports.HistoryLog with one Redis list per project.
// Records never expire.
type History struct {
	client *backend.Client
	prefix string
}

// NewHistory creates a history log sharing the store's key prefix convention.
func NewHistory(client *backend.Client, prefix string) *History {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &History{client: client, prefix: prefix}
}

func (h *History) key(projectID string) string {
	return h.prefix + "history:" + projectID
}

// Append pushes the encoded record onto the project's list.
func (h *History) Append(ctx context.Context, projectID string, rec domain.VersionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal version record: %w", err)
	}
	if err := h.client.RPush(ctx, h.key(projectID), data).Err(); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// List decodes every record and orders them newest version first.
func (h *History) List(ctx context.Context, projectID string) ([]domain.VersionRecord, error) {
	raw, err := h.client.LRange(ctx, h.key(projectID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	out := make([]domain.VersionRecord, 0, len(raw))
	for i, item := range raw {
		var rec domain.VersionRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode history entry %d: %w", i, err)
		}
		out = append(out, rec)
	}
	slices.SortStableFunc(out, domain.NewestFirst)
	return out, nil
}
