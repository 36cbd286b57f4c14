// Package events provides a fire-and-forget NATS publisher for thread
// lifecycle and audit events. The service publishes a signal for every
// committed mutation so peer instances can fan out to their own
// subscribers, and a denial event for every rejected write.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	// SubjectThreadPrefix is completed with the post id, e.g.
	// "threads.events.<post_id>".
	SubjectThreadPrefix = "threads.events."

	// SubjectPermissionDenied carries the audit trail of rejected writes.
	SubjectPermissionDenied = "threads.denied"
)

// ThreadSubject returns the per-post event subject.
func ThreadSubject(postID string) string {
	return SubjectThreadPrefix + postID
}

// Event is the canonical envelope sent to all threads.* subjects.
type Event struct {
	EventID    string         `json:"event_id"`
	EventName  string         `json:"event_name"`
	UserID     string         `json:"user_id,omitempty"`
	Source     string         `json:"source,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Publisher publishes events to NATS JetStream.
// The zero value and a nil pointer are both safe no-op stubs.
type Publisher struct {
	js     nats.JetStreamContext
	log    *zap.Logger
	source string
}

// New creates a Publisher using an existing JetStream context. source
// identifies this instance so consumers can skip their own events.
// Pass js=nil to get a no-op stub (useful in tests and deployments
// without NATS).
func New(js nats.JetStreamContext, log *zap.Logger, source string) *Publisher {
	return &Publisher{js: js, log: log, source: source}
}

// Source returns the instance identifier stamped on published events.
func (p *Publisher) Source() string {
	if p == nil {
		return ""
	}
	return p.source
}

// Publish sends an event asynchronously (fire-and-forget). Failures are
// logged as warnings and never surface to the caller; a mutation that
// committed must not be rolled back because the event bus is down.
// Safe to call with a nil receiver.
func (p *Publisher) Publish(subject, eventName, userID string, props map[string]any) {
	if p == nil || p.js == nil {
		return
	}
	ev := Event{
		EventID:    uuid.NewString(),
		EventName:  eventName,
		UserID:     userID,
		Source:     p.source,
		OccurredAt: time.Now().UTC(),
		Properties: props,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("events: marshal failed", zap.String("event", eventName), zap.Error(err))
		return
	}
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		p.log.Warn("events: publish failed", zap.String("subject", subject), zap.Error(err))
	}
}
