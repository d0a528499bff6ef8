package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/yourusername/propcast/internal/ml"
	"github.com/yourusername/propcast/internal/models"
)

const (
	versionsDir  = "versions"
	artifactFile = "artifact.json"
	latestFile   = "LATEST"
)

// FileStore keeps each version in <dir>/versions/<id>/artifact.json and the
// latest pointer in <dir>/LATEST. Both are written to a temporary path and
// renamed into place.
type FileStore struct {
	dir string
}

// NewFileStore creates the registry layout under dir
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, versionsDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) versionPath(versionID string) string {
	return filepath.Join(s.dir, versionsDir, versionID)
}

func validVersionID(versionID string) bool {
	return versionID != "" &&
		!strings.HasPrefix(versionID, ".") &&
		!strings.ContainsAny(versionID, `/\`)
}

// Save writes a new immutable version
func (s *FileStore) Save(_ context.Context, artifact *ml.Artifact) error {
	if !validVersionID(artifact.VersionID) {
		return models.NewValidationError(fmt.Sprintf("invalid version id %q", artifact.VersionID))
	}

	target := s.versionPath(artifact.VersionID)
	if _, err := os.Stat(target); err == nil {
		return models.ErrDuplicateKey
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	tmp := filepath.Join(s.dir, versionsDir, ".tmp-"+uuid.NewString())
	if err := os.Mkdir(tmp, 0o755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, artifactFile), data, 0o644); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.RemoveAll(tmp)
		if _, statErr := os.Stat(target); statErr == nil {
			return models.ErrDuplicateKey
		}
		return fmt.Errorf("failed to publish artifact: %w", err)
	}
	return nil
}

// Load reads one version
func (s *FileStore) Load(_ context.Context, versionID string) (*ml.Artifact, error) {
	if !validVersionID(versionID) {
		return nil, models.ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.versionPath(versionID), artifactFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", versionID, err)
	}

	var artifact ml.Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", versionID, err)
	}
	return &artifact, nil
}

// SetLatest moves the pointer to an existing version
func (s *FileStore) SetLatest(_ context.Context, versionID string) error {
	if !validVersionID(versionID) {
		return models.ErrNotFound
	}
	if _, err := os.Stat(filepath.Join(s.versionPath(versionID), artifactFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.ErrNotFound
		}
		return fmt.Errorf("failed to stat version %s: %w", versionID, err)
	}

	tmp := filepath.Join(s.dir, "."+latestFile+"-"+uuid.NewString())
	if err := os.WriteFile(tmp, []byte(versionID+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write latest pointer: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, latestFile)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to switch latest pointer: %w", err)
	}
	return nil
}

// Latest returns the version id the pointer resolves to
func (s *FileStore) Latest(_ context.Context) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, latestFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read latest pointer: %w", err)
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", models.ErrNotFound
	}
	return id, nil
}

// List returns every version, newest first
func (s *FileStore) List(ctx context.Context) ([]*models.ModelVersion, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, versionsDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	latest, err := s.Latest(ctx)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	versions := make([]*models.ModelVersion, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		artifact, err := s.Load(ctx, entry.Name())
		if err != nil {
			return nil, err
		}
		mv, err := artifact.ModelVersion(artifact.VersionID == latest)
		if err != nil {
			return nil, err
		}
		versions = append(versions, mv)
	}

	sortVersions(versions)
	return versions, nil
}
