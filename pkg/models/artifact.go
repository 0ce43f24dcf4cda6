package models

import (
	"encoding/json"
	"time"
)

// ArtifactStatus is the lifecycle status of a produced artifact.
type ArtifactStatus string

// Artifact status values. Records are inserted as pending at dispatch and
// transitioned by the generation callback; they are never deleted.
const (
	ArtifactPending ArtifactStatus = "pending"
	ArtifactSuccess ArtifactStatus = "SUCCESS"
	ArtifactFailed  ArtifactStatus = "FAILED"
)

// ArtifactRecord tracks one generated artifact. The bytes live in the blob
// store; this record carries only the path and scoring metadata.
// QualityScore and EvaluationDetails stay nil until the analysis callback.
type ArtifactRecord struct {
	ID                string          `json:"id"`
	ProjectID         string          `json:"project_id"`
	WaveNumber        int             `json:"wave_number"`
	BlobPath          string          `json:"r2_path"`
	Status            ArtifactStatus  `json:"status"`
	QualityScore      *float64        `json:"quality_score,omitempty"`
	EvaluationDetails json.RawMessage `json:"evaluation_details,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}
