// Package syncbus carries data-changed events between devices that share
// the same maintenance data over NATS.
package syncbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hray3182/Upkeep/internal/logger"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const EventDataChanged = "data.changed"

// Event is the envelope published for every local write.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"` // device that made the write
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates a data-changed event with a unique ID.
func NewEvent(source, entity, entityID string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      EventDataChanged,
		Source:    source,
		Entity:    entity,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
}

// Conn is the part of *nats.Conn used by the bus.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

type Bus struct {
	conn    Conn
	nc      *nats.Conn
	subject string
	device  string
	logger  *zap.Logger
	subs    []*nats.Subscription
}

// Connect dials NATS and returns a bus publishing on subject as device.
func Connect(url, subject, device string, log *zap.Logger) (*Bus, error) {
	log = logger.OrNop(log)
	nc, err := nats.Connect(url,
		nats.Name("upkeep-"+device),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	b := New(nc, subject, device, log)
	b.nc = nc
	log.Info("Sync bus connected", zap.String("url", url), zap.String("subject", subject))
	return b, nil
}

func New(conn Conn, subject, device string, log *zap.Logger) *Bus {
	return &Bus{conn: conn, subject: subject, device: device, logger: logger.OrNop(log)}
}

// Publish announces a local write of entity to the other devices.
func (b *Bus) Publish(ctx context.Context, entity, entityID string) error {
	if b == nil {
		return nil
	}
	event := NewEvent(b.device, entity, entityID)
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.conn.Publish(b.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", b.subject, err)
	}
	b.logger.Debug("Event published",
		zap.String("event_id", event.ID),
		zap.String("entity", entity))
	return nil
}

// Subscribe calls onChange for every event published by another device.
func (b *Bus) Subscribe(onChange func(*Event)) error {
	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		b.handle(msg.Data, onChange)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.subject, err)
	}
	b.subs = append(b.subs, sub)
	b.logger.Info("Subscribed to sync events", zap.String("subject", b.subject))
	return nil
}

func (b *Bus) handle(data []byte, onChange func(*Event)) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		b.logger.Warn("Failed to unmarshal sync event", zap.Error(err))
		return
	}
	if event.Type != EventDataChanged || event.Source == b.device {
		return
	}
	onChange(&event)
}

// Close drains subscriptions and the connection.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	for _, sub := range b.subs {
		if sub != nil {
			_ = sub.Unsubscribe()
		}
	}
	if b.nc != nil {
		_ = b.nc.Drain()
	}
}
