// Package events publishes transient project lifecycle events via PostgreSQL
// NOTIFY, so dashboards and other listeners can follow runs in real time
// without polling the status endpoint. Events are fire-and-forget: nothing in
// the wave state machine depends on their delivery.
package events

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Event types.
const (
	EventTypeProjectStatus = "project.status"
	EventTypeWaveAdvanced  = "wave.advanced"
)

// pgChannelMaxLen is the PostgreSQL identifier length limit for NOTIFY
// channel names.
const pgChannelMaxLen = 63

// ProjectChannel derives the NOTIFY channel name for a project. Long project
// identifiers are hashed to stay under the PostgreSQL channel name limit.
func ProjectChannel(projectID string) string {
	name := fmt.Sprintf("crucible_project_%s", projectID)
	if len(name) <= pgChannelMaxLen {
		return name
	}
	sum := sha256.Sum256([]byte(projectID))
	return fmt.Sprintf("crucible_project_%s", hex.EncodeToString(sum[:16]))
}
