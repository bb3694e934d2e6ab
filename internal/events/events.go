// Package events publishes build-completion events over NATS so downstream
// consumers (deploy hooks, cache invalidation) can react to finished builds.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// BuildCompleted is the published payload for one finished build.
type BuildCompleted struct {
	BuildID          string    `json:"build_id"`
	Outcome          string    `json:"outcome"` // success|failed|canceled
	Rendered         int       `json:"rendered"`
	SkippedUnchanged int       `json:"skipped_unchanged"`
	Failed           int       `json:"failed"`
	SkippedDeps      int       `json:"skipped_deps"`
	DurationMS       int64     `json:"duration_ms"`
	SourceCommit     string    `json:"source_commit,omitempty"`
	CompletedAt      time.Time `json:"completed_at"`
}

// Publisher sends build events to a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// Connect dials the NATS server and returns a publisher for the subject.
func Connect(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("sitesmith"),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS %s: %w", url, err)
	}
	slog.Info("Connected to NATS for build events",
		slog.String("url", url),
		slog.String("subject", subject))
	return &Publisher{conn: conn, subject: subject}, nil
}

// Publish sends one build-completion event. Flush bounds delivery so a
// short-lived CLI build does not exit before the event leaves the socket.
func (p *Publisher) Publish(event BuildCompleted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal build event: %w", err)
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("publish build event: %w", err)
	}
	return p.conn.FlushTimeout(5 * time.Second)
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
