package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// SubjectPrefix is prepended to the event type to form the NATS subject.
const SubjectPrefix = "docchat.events."

// NewNATS constructs a thin NATS-based publisher.
func NewNATS(log *slog.Logger, nc *nats.Conn) Publisher {
	return &natsPublisher{log: log, nc: nc}
}

type natsPublisher struct {
	log *slog.Logger
	nc  *nats.Conn
}

func (p *natsPublisher) Publish(_ context.Context, event Event) error {
	if event.Type == "" {
		return errors.New("event type required")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.nc.Publish(SubjectPrefix+string(event.Type), body)
}

// Close flushes buffered messages and closes the connection.
func (p *natsPublisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.log.Warn("nats drain failed", "err", err)
		p.nc.Close()
		return err
	}
	return nil
}
