// Package registry stores immutable model versions and serves the latest one.
package registry

import (
	"context"
	"sort"
	"time"

	"github.com/yourusername/propcast/internal/ml"
	"github.com/yourusername/propcast/internal/models"
)

// LatestPointer names the pointer row/file that resolves the served version
const LatestPointer = "latest"

// Store persists artifacts and the latest pointer.
// Save must never overwrite an existing version; it returns
// models.ErrDuplicateKey instead. Load and Latest return models.ErrNotFound.
type Store interface {
	Save(ctx context.Context, artifact *ml.Artifact) error
	Load(ctx context.Context, versionID string) (*ml.Artifact, error)
	SetLatest(ctx context.Context, versionID string) error
	Latest(ctx context.Context) (string, error)
	List(ctx context.Context) ([]*models.ModelVersion, error)
}

// NewVersionID derives a sortable version id from t
func NewVersionID(t time.Time) string {
	return "v" + t.UTC().Format("20060102T150405.000000")
}

func sortVersions(versions []*models.ModelVersion) {
	sort.Slice(versions, func(i, j int) bool {
		if !versions[i].CreatedAt.Equal(versions[j].CreatedAt) {
			return versions[i].CreatedAt.After(versions[j].CreatedAt)
		}
		return versions[i].VersionID > versions[j].VersionID
	})
}
