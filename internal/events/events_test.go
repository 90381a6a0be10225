package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestPublishWithRetry(t *testing.T) {
	event := Event{Type: TypeDocumentLoaded, SessionID: uuid.New()}

	t.Run("succeeds after transient failure", func(t *testing.T) {
		p := new(MockPublisher)
		p.On("Publish", mock.Anything, event).Return(errors.New("nats: connection closed")).Once()
		p.On("Publish", mock.Anything, event).Return(nil).Once()

		err := PublishWithRetry(context.Background(), p, event, 3, time.Millisecond)
		assert.NoError(t, err)
		p.AssertExpectations(t)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		p := new(MockPublisher)
		p.On("Publish", mock.Anything, event).Return(errors.New("nats: timeout")).Times(3)

		err := PublishWithRetry(context.Background(), p, event, 3, time.Millisecond)
		assert.EqualError(t, err, "nats: timeout")
		p.AssertExpectations(t)
	})
}

func TestNoOpPublisher(t *testing.T) {
	p := NewNoOp()
	assert.NoError(t, p.Publish(context.Background(), Event{Type: TypeSessionStarted}))
	assert.NoError(t, p.Close())
}
