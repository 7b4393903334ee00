// Package analytics publishes fire-and-forget business events to NATS JetStream.
package analytics

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// StreamName is the JetStream stream that captures every tracker.* event.
const StreamName = "TRACKER_EVENTS"

const (
	SubjectWatchedMarked   = "tracker.watched.marked"
	SubjectWatchedRemoved  = "tracker.watched.removed"
	SubjectAuthRegistered  = "tracker.auth.registered"
	SubjectAuthLoggedIn    = "tracker.auth.logged_in"
	SubjectCatalogSearched = "tracker.catalog.searched"
)

// Subjects lists the subjects bound to StreamName.
var Subjects = []string{
	SubjectWatchedMarked,
	SubjectWatchedRemoved,
	SubjectAuthRegistered,
	SubjectAuthLoggedIn,
	SubjectCatalogSearched,
}

type Event struct {
	EventID    string         `json:"event_id"`
	EventName  string         `json:"event_name"`
	UserID     string         `json:"user_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Publisher is safe to use as a nil pointer or with a nil JetStream context;
// both publish nothing.
type Publisher struct {
	js  nats.JetStreamContext
	log *zap.Logger
	now func() time.Time
}

func New(js nats.JetStreamContext, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{js: js, log: log, now: time.Now}
}

// Publish never surfaces failures to the caller; they are logged at warn.
func (p *Publisher) Publish(subject, eventName, userID string, props map[string]any) {
	if p == nil || p.js == nil {
		return
	}
	data, err := json.Marshal(p.envelope(eventName, userID, props))
	if err != nil {
		p.log.Warn("analytics: marshal failed", zap.String("event", eventName), zap.Error(err))
		return
	}
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		p.log.Warn("analytics: publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

func (p *Publisher) envelope(eventName, userID string, props map[string]any) Event {
	return Event{
		EventID:    uuid.NewString(),
		EventName:  eventName,
		UserID:     userID,
		OccurredAt: p.now().UTC(),
		Properties: props,
	}
}
