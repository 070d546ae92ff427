package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/outline/pkg/domain"
	"github.com/aretw0/outline/pkg/ports"
)

// HistoryMiddleware wraps a HistoryLog to add behavior.
type HistoryMiddleware func(ports.HistoryLog) ports.HistoryLog

// ChainHistory applies middlewares so the first one listed is the outermost.
func ChainHistory(log ports.HistoryLog, mws ...HistoryMiddleware) ports.HistoryLog {
	for i := len(mws) - 1; i >= 0; i-- {
		log = mws[i](log)
	}
	return log
}

type redactHistory struct {
	next     ports.HistoryLog
	patterns []*regexp.Regexp
}

// NewRedactHistoryMiddleware masks matching payload values in the snapshot of
// every appended record, with the same patterns as NewRedactMiddleware.
func NewRedactHistoryMiddleware(patternStrings []string) (HistoryMiddleware, error) {
	patterns, err := compilePatterns(patternStrings)
	if err != nil {
		return nil, err
	}
	return func(next ports.HistoryLog) ports.HistoryLog {
		return &redactHistory{next: next, patterns: patterns}
	}, nil
}

func (m *redactHistory) Append(ctx context.Context, projectID string, rec domain.VersionRecord) error {
	rec.Snapshot = redacted(rec.Snapshot, m.patterns)
	return m.next.Append(ctx, projectID, rec)
}

func (m *redactHistory) List(ctx context.Context, projectID string) ([]domain.VersionRecord, error) {
	return m.next.List(ctx, projectID)
}

// sealedPrefix marks the single change log entry of a sealed record.
const sealedPrefix = "sealed:"

type encryptedHistory struct {
	next   ports.HistoryLog
	config EncryptionConfig
}

// NewEncryptionHistoryMiddleware seals the snapshot and change log of every
// appended record. Version, kind, time, editor and remark stay readable so
// the log still orders and filters. Records appended before encryption was
// enabled are listed unchanged.
func NewEncryptionHistoryMiddleware(config EncryptionConfig) HistoryMiddleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.HistoryLog) ports.HistoryLog {
		return &encryptedHistory{next: next, config: config}
	}
}

func (m *encryptedHistory) Append(ctx context.Context, projectID string, rec domain.VersionRecord) error {
	if rec.Snapshot != nil {
		envelope, err := seal(rec.Snapshot, m.config.ActiveKey)
		if err != nil {
			return err
		}
		rec.Snapshot = envelope
	}
	if len(rec.ChangeLog) > 0 {
		plain, err := json.Marshal(rec.ChangeLog)
		if err != nil {
			return fmt.Errorf("failed to marshal change log: %w", err)
		}
		encoded, err := sealBytes(plain, m.config.ActiveKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt change log: %w", err)
		}
		rec.ChangeLog = []string{sealedPrefix + encoded}
	}
	return m.next.Append(ctx, projectID, rec)
}

func (m *encryptedHistory) List(ctx context.Context, projectID string) ([]domain.VersionRecord, error) {
	recs, err := m.next.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if isEnvelope(recs[i].Snapshot) {
			snap, err := unseal(recs[i].Snapshot, m.config)
			if err != nil {
				return nil, fmt.Errorf("version %s: %w", recs[i].Version, err)
			}
			recs[i].Snapshot = snap
		}
		if len(recs[i].ChangeLog) == 1 && strings.HasPrefix(recs[i].ChangeLog[0], sealedPrefix) {
			plain, err := unsealBytes(strings.TrimPrefix(recs[i].ChangeLog[0], sealedPrefix), m.config)
			if err != nil {
				return nil, fmt.Errorf("version %s change log: %w", recs[i].Version, err)
			}
			var changes []string
			if err := json.Unmarshal(plain, &changes); err != nil {
				return nil, fmt.Errorf("version %s change log: %w", recs[i].Version, err)
			}
			recs[i].ChangeLog = changes
		}
	}
	return recs, nil
}
