package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"doc-chat/internal/events"
	"doc-chat/internal/extract"
)

// Answerer produces the assistant reply for a question about a document.
// It always returns text; failures are expected to be folded into the reply.
type Answerer interface {
	Answer(ctx context.Context, question, content string) string
}

// Controller is the only writer of session state. Each read-modify-write holds the
// store's lock for the session, so controllers sharing a store never interleave.
type Controller struct {
	store     Store
	extractor extract.Extractor
	answerer  Answerer
	events    events.Publisher
	log       *slog.Logger
	greeting  string
	now       func() time.Time
}

// NewController wires the session flow. An empty greeting starts each conversation empty.
func NewController(store Store, extractor extract.Extractor, answerer Answerer, pub events.Publisher, log *slog.Logger, greeting string) *Controller {
	if pub == nil {
		pub = events.NewNoOp()
	}
	return &Controller{
		store:     store,
		extractor: extractor,
		answerer:  answerer,
		events:    pub,
		log:       log,
		greeting:  greeting,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start opens a new session with no document.
func (c *Controller) Start(ctx context.Context) (Session, error) {
	now := c.now()
	s := Session{
		ID:        uuid.New(),
		State:     StateNoDocument,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.Create(ctx, s); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	c.log.Info("session started", "session_id", s.ID)
	c.publish(ctx, events.TypeSessionStarted, s.ID, nil)
	return s, nil
}

// Get returns the current state of a session.
func (c *Controller) Get(ctx context.Context, id uuid.UUID) (Session, error) {
	return c.store.Get(ctx, id)
}

// LoadDocument extracts the text of content and makes it the session's document,
// restarting the conversation. If extraction fails the session is left as it was
// and the returned error wraps extract.ErrDocumentFormat.
func (c *Controller) LoadDocument(ctx context.Context, id uuid.UUID, filename string, content []byte) (Session, error) {
	unlock, err := c.store.Lock(ctx, id)
	if err != nil {
		return Session{}, fmt.Errorf("lock session: %w", err)
	}
	defer unlock()

	s, err := c.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	text, err := c.extractor.Extract(content)
	if err != nil {
		c.log.Warn("document rejected", "session_id", id, "filename", filename, "bytes", len(content), "err", err)
		return Session{}, fmt.Errorf("extract %q: %w", filename, err)
	}

	now := c.now()
	s.State = StateDocumentLoaded
	s.DocumentName = filename
	s.Text = text
	s.Log = newLog(c.greeting, now)
	s.UpdatedAt = now
	// The round-trip is recorded even if the caller went away meanwhile.
	if err := c.store.Save(context.WithoutCancel(ctx), s); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}

	c.log.Info("document loaded", "session_id", id, "filename", filename, "bytes", len(content), "text_chars", len(text))
	c.publish(ctx, events.TypeDocumentLoaded, id, map[string]any{
		"upload_bytes": len(content),
		"text_chars":   len(text),
	})
	return s, nil
}

// Ask appends the question, the reply generated from the session's document text,
// and returns the updated session. Any question, including an empty one, is accepted.
func (c *Controller) Ask(ctx context.Context, id uuid.UUID, question string) (Session, error) {
	unlock, err := c.store.Lock(ctx, id)
	if err != nil {
		return Session{}, fmt.Errorf("lock session: %w", err)
	}
	defer unlock()

	s, err := c.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if s.State != StateDocumentLoaded {
		return Session{}, ErrNoDocument
	}

	s.Log.append(RoleUser, question, c.now())
	reply := c.answerer.Answer(ctx, question, s.Text)
	s.Log.append(RoleAssistant, reply, c.now())
	s.UpdatedAt = c.now()
	// The round-trip is recorded even if the caller went away meanwhile.
	if err := c.store.Save(context.WithoutCancel(ctx), s); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}

	c.publish(ctx, events.TypeQuestionAnswered, id, map[string]any{
		"question_chars": len(question),
		"reply_chars":    len(reply),
		"log_len":        s.Log.Len(),
	})
	return s, nil
}

// End discards the session and everything it holds.
func (c *Controller) End(ctx context.Context, id uuid.UUID) error {
	unlock, err := c.store.Lock(ctx, id)
	if err != nil {
		return fmt.Errorf("lock session: %w", err)
	}
	defer unlock()

	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	c.log.Info("session ended", "session_id", id)
	c.publish(ctx, events.TypeSessionEnded, id, nil)
	return nil
}

func (c *Controller) publish(ctx context.Context, typ events.Type, id uuid.UUID, attrs map[string]any) {
	ev := events.Event{ID: uuid.New(), Type: typ, SessionID: id, At: c.now(), Attrs: attrs}
	if err := events.PublishWithRetry(context.WithoutCancel(ctx), c.events, ev, 3, 50*time.Millisecond); err != nil {
		c.log.Warn("failed to publish event", "type", typ, "session_id", id, "err", err)
	}
}
