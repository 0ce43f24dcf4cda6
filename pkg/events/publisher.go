package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Publisher broadcasts project events via PostgreSQL NOTIFY. Each public
// method accepts a typed payload struct; payloads are marshaled to JSON and
// sent on the project's channel. Delivery is transient only — no persistence.
type Publisher struct {
	db *sql.DB
}

// NewPublisher creates a Publisher. The db parameter should be the *sql.DB
// from database.Client.DB().
func NewPublisher(db *sql.DB) *Publisher {
	return &Publisher{db: db}
}

// PublishProjectStatus broadcasts a project.status event.
func (p *Publisher) PublishProjectStatus(ctx context.Context, projectID string, payload ProjectStatusPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal ProjectStatusPayload: %w", err)
	}
	return p.notify(ctx, ProjectChannel(projectID), payloadJSON)
}

// PublishWaveAdvanced broadcasts a wave.advanced event.
func (p *Publisher) PublishWaveAdvanced(ctx context.Context, projectID string, payload WaveAdvancedPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal WaveAdvancedPayload: %w", err)
	}
	return p.notify(ctx, ProjectChannel(projectID), payloadJSON)
}

// notify issues pg_notify on the given channel.
func (p *Publisher) notify(ctx context.Context, channel string, payload []byte) error {
	if _, err := p.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, channel, string(payload)); err != nil {
		return fmt.Errorf("failed to notify channel %s: %w", channel, err)
	}
	return nil
}
