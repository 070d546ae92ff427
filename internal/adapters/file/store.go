package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/outline/pkg/domain"
)

// Store implements ports.SnapshotStore using the local filesystem.
// Each project is one JSON file in BasePath.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".outline/projects".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".outline", "projects")
	}
	return &Store{BasePath: basePath}
}

// Path returns the file backing a project.
func (s *Store) Path(projectID string) string {
	return filepath.Join(s.BasePath, projectID+".json")
}

func checkID(projectID string) error {
	if projectID == "" {
		return fmt.Errorf("project id cannot be empty")
	}
	if strings.ContainsAny(projectID, `/\`) || projectID == "." || projectID == ".." {
		return fmt.Errorf("invalid project id %q", projectID)
	}
	return nil
}

// Save writes the snapshot atomically: temp file in the same directory, fsync,
// then rename over the destination.
func (s *Store) Save(ctx context.Context, projectID string, snap *domain.Snapshot) error {
	if err := checkID(projectID); err != nil {
		return err
	}
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure project directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+projectID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	destPath := s.Path(projectID)
	if _, err := os.Stat(destPath); err == nil {
		// os.Rename does not replace existing files on Windows.
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to replace project file: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load reads the project's snapshot.
func (s *Store) Load(ctx context.Context, projectID string) (*domain.Snapshot, error) {
	if err := checkID(projectID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(projectID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NotFound(projectID)
		}
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project %q: %w", projectID, err)
	}
	return &snap, nil
}

// Delete removes the project file.
func (s *Store) Delete(ctx context.Context, projectID string) error {
	if err := checkID(projectID); err != nil {
		return err
	}
	if err := os.Remove(s.Path(projectID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete project file: %w", err)
	}
	return nil
}

// List returns the ids of all project files.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}
