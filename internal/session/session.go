// Package session holds per-user conversation state and the controller that drives it:
// a document upload resets the conversation, each question appends a user entry and
// the assistant's reply.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoDocument      = errors.New("no document loaded")
)

// State is the position of a session in its lifecycle.
type State string

const (
	StateNoDocument     State = "no_document"
	StateDocumentLoaded State = "document_loaded"
)

// Session is the state owned by one user: the extracted text of the current document
// and the conversation about it. It lives only as long as its store keeps it.
type Session struct {
	ID           uuid.UUID `json:"id"`
	State        State     `json:"state"`
	DocumentName string    `json:"document_name,omitempty"`
	Text         string    `json:"text"`
	Log          Log       `json:"log"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s Session) clone() Session {
	s.Log = s.Log.clone()
	return s
}

// Store keeps sessions for their lifetime. Implementations return copies, so a
// Session read from a store can only change the stored state through Save.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id uuid.UUID) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Lock holds id until unlock is called. It is shared by every client of the
	// same backing store, not just this process.
	Lock(ctx context.Context, id uuid.UUID) (unlock func(), err error)
}
