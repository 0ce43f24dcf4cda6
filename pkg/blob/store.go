// Package blob provides the artifact byte store shared by all components.
// Components reference blobs by path only; paths are project-scoped and
// single-writer, so no cross-writer coordination is needed.
package blob

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no blob exists at the requested path.
var ErrNotFound = errors.New("blob not found")

// Store is the opaque byte store contract. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the bytes stored at path, or ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, error)

	// Put stores data at path, overwriting any existing blob. ContentType is
	// advisory; implementations may ignore it.
	Put(ctx context.Context, path string, data []byte, contentType string) error
}

// SpecPath returns the blob path for a project's spec document.
func SpecPath(projectID string) string {
	return fmt.Sprintf("specs/%s.md", projectID)
}

// ScorecardPath returns the blob path for a project's scorecard document.
func ScorecardPath(projectID string) string {
	return fmt.Sprintf("scorecards/%s.json", projectID)
}

// ArtifactPath returns the blob path for one generated artifact.
func ArtifactPath(wave int, artifactID string) string {
	return fmt.Sprintf("artifacts/wave-%d/%s.html", wave, artifactID)
}
