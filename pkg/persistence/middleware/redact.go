package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/outline/pkg/domain"
	"github.com/aretw0/outline/pkg/ports"
)

// Mask replaces redacted payload values.
const Mask = "***"

type redactMiddleware struct {
	next     ports.SnapshotStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware creates a middleware that masks node payload values whose
// key matches any of the patterns before they reach the store.
// The caller's snapshot is never modified.
func NewRedactMiddleware(patternStrings []string) (Middleware, error) {
	patterns, err := compilePatterns(patternStrings)
	if err != nil {
		return nil, err
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactMiddleware) Save(ctx context.Context, projectID string, snap *domain.Snapshot) error {
	return m.next.Save(ctx, projectID, redacted(snap, m.patterns))
}

func (m *redactMiddleware) Load(ctx context.Context, projectID string) (*domain.Snapshot, error) {
	return m.next.Load(ctx, projectID)
}

func (m *redactMiddleware) Delete(ctx context.Context, projectID string) error {
	return m.next.Delete(ctx, projectID)
}

func (m *redactMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func compilePatterns(patternStrings []string) ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns[i] = re
	}
	return patterns, nil
}

// redacted returns a masked clone of snap.
func redacted(snap *domain.Snapshot, patterns []*regexp.Regexp) *domain.Snapshot {
	if snap == nil {
		return nil
	}
	cloned := snap.Clone()
	for i := range cloned.Nodes {
		maskPayload(cloned.Nodes[i].Payload, patterns)
	}
	return cloned
}

func maskPayload(payload map[string]string, patterns []*regexp.Regexp) {
	for k := range payload {
		for _, p := range patterns {
			if p.MatchString(k) {
				payload[k] = Mask
				break
			}
		}
	}
}
