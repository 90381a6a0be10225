package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"doc-chat/internal/retry"
)

// Type enumerates session lifecycle events.
type Type string

const (
	TypeSessionStarted   Type = "session.started"
	TypeDocumentLoaded   Type = "document.loaded"
	TypeQuestionAnswered Type = "question.answered"
	TypeSessionEnded     Type = "session.ended"
)

// Event describes something that happened in a session. Attrs carry ids and sizes
// only; document text and questions are never published.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Type      Type           `json:"type"`
	SessionID uuid.UUID      `json:"session_id"`
	At        time.Time      `json:"at"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// Publisher exposes a minimal contract to emit events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// PublishWithRetry attempts to publish with retries and exponential backoff.
func PublishWithRetry(ctx context.Context, p Publisher, event Event, attempts int, base time.Duration) error {
	return retry.Do(ctx, attempts, base, func(ctx context.Context) error {
		return p.Publish(ctx, event)
	})
}
