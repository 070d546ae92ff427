// Package sqlite stores version history in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/outline/pkg/domain"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - versions table
// 2 - ordinals widened to 21 bits per version part
const currentSchemaVersion = 2

// History implements ports.HistoryLog. Rows are only ever inserted.
type History struct {
	db *sql.DB
}

// Open creates or opens the database at path, creating parent directories.
// ":memory:" opens a private in-memory database.
func Open(path string) (*History, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &History{db: db}, nil
}

// Close closes the database connection.
func (h *History) Close() error {
	if h.db == nil {
		return nil
	}
	return h.db.Close()
}

func applyPragmas(db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	if version == 1 {
		if err := reindexOrdinals(db); err != nil {
			return fmt.Errorf("migrate to version 2: %w", err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// reindexOrdinals recomputes every stored ordinal from its version string.
func reindexOrdinals(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.Query("SELECT seq, version FROM versions")
	if err != nil {
		return err
	}
	ordinals := map[int64]int64{}
	for rows.Next() {
		var (
			seq     int64
			version string
		)
		if err := rows.Scan(&seq, &version); err != nil {
			rows.Close()
			return err
		}
		ordinals[seq] = domain.ParseVersion(version).Ordinal()
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for seq, ord := range ordinals {
		if _, err := tx.Exec("UPDATE versions SET ordinal = ? WHERE seq = ?", ord, seq); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Append inserts the record. The stored ordinal is derived from rec.Version.
func (h *History) Append(ctx context.Context, projectID string, rec domain.VersionRecord) error {
	snapshot, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	changeLog, err := json.Marshal(rec.ChangeLog)
	if err != nil {
		return fmt.Errorf("failed to marshal change log: %w", err)
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO versions
			(project_id, version, ordinal, kind, snapshot, change_log, created_at, editor_id, editor_email, remark)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		projectID, rec.Version, domain.ParseVersion(rec.Version).Ordinal(), string(rec.Kind), snapshot, changeLog,
		rec.CreatedAt.UnixNano(), rec.Editor.ID, rec.Editor.Email, rec.Remark,
	)
	if err != nil {
		return fmt.Errorf("failed to insert version %s: %w", rec.Version, err)
	}
	return nil
}

// List returns the project's records, newest version first.
func (h *History) List(ctx context.Context, projectID string) ([]domain.VersionRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT version, ordinal, kind, snapshot, change_log, created_at, editor_id, editor_email, remark
		FROM versions
		WHERE project_id = ?
		ORDER BY ordinal DESC, created_at DESC, seq DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	out := []domain.VersionRecord{}
	for rows.Next() {
		var (
			rec                 domain.VersionRecord
			kind                string
			snapshot, changeLog []byte
			createdAt           int64
		)
		if err := rows.Scan(&rec.Version, &rec.Ordinal, &kind, &snapshot, &changeLog,
			&createdAt, &rec.Editor.ID, &rec.Editor.Email, &rec.Remark); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		rec.Kind = domain.CheckpointKind(kind)
		rec.CreatedAt = time.Unix(0, createdAt).UTC()
		if err := json.Unmarshal(snapshot, &rec.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot of %s: %w", rec.Version, err)
		}
		if err := json.Unmarshal(changeLog, &rec.ChangeLog); err != nil {
			return nil, fmt.Errorf("failed to decode change log of %s: %w", rec.Version, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
