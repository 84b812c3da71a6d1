// Package events publishes room and game lifecycle events for other
// services to observe. Delivery is fire-and-forget.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type Kind string

const (
	RoomCreated   Kind = "room.created"
	RoomDestroyed Kind = "room.destroyed"
	GameStarted   Kind = "game.started"
	GameEnded     Kind = "game.ended"
)

type Event struct {
	Kind      Kind      `json:"kind"`
	RoomID    string    `json:"room_id"`
	RoomName  string    `json:"room_name,omitempty"`
	PlayerIDs []string  `json:"player_ids,omitempty"`
	WinnerID  string    `json:"winner_id,omitempty"`
	At        time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close()
}

// Subject returns the NATS subject an event of kind is published on.
func Subject(prefix string, kind Kind) string {
	return fmt.Sprintf("%s.%s", prefix, kind)
}

type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	log    *zap.Logger
}

// ConnectNATS dials url and keeps reconnecting in the background.
func ConnectNATS(url, name, prefix string, log *zap.Logger) (*NATSPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("events")
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	return &NATSPublisher{conn: conn, prefix: prefix, log: log}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.Kind, err)
	}
	if err := p.conn.Publish(Subject(p.prefix, ev.Kind), data); err != nil {
		return fmt.Errorf("publish event %s: %w", ev.Kind, err)
	}
	return nil
}

func (p *NATSPublisher) Healthy() error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats status %s", p.conn.Status())
	}
	return nil
}

func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.log.Warn("nats drain", zap.Error(err))
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close()                               {}

// Recorder keeps events in memory, for tests and local runs.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() {}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds lists recorded event kinds in publish order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}
