// Package network owns client connections: it accepts transports, runs their
// read and write loops, applies the reliable delivery discipline and hands
// decoded messages to an EventHandler.
package network

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"souls/internal/apperr"
	"souls/internal/protocol"
	"souls/internal/reliable"
)

// EventHandler receives connection events. OnMessage runs on the reading
// goroutine of the connection, so calls for one connection never overlap.
// A non-nil error from OnMessage means the message was rejected without
// touching any state: the error is sent to the client and the message may
// be redelivered with the same seq or token.
type EventHandler interface {
	OnConnect(connID string)
	OnDisconnect(connID string, aff Affiliation)
	OnMessage(connID string, env protocol.Envelope) error
}

type Options struct {
	Policy      reliable.Policy
	SendBuffer  int
	DedupWindow int
	PingPeriod  time.Duration
}

func DefaultOptions() Options {
	return Options{
		Policy:      reliable.DefaultPolicy(),
		SendBuffer:  256,
		DedupWindow: 128,
		PingPeriod:  PingPeriod,
	}
}

type Manager struct {
	mu    sync.RWMutex
	conns map[string]*Connection

	handler EventHandler
	codec   protocol.Codec
	opts    Options
	log     *zap.Logger
}

func NewManager(codec protocol.Codec, opts Options, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.SendBuffer < 1 {
		opts.SendBuffer = 1
	}
	return &Manager{
		conns: make(map[string]*Connection),
		codec: codec,
		opts:  opts,
		log:   log.Named("connections"),
	}
}

// SetHandler must be called before the first Serve.
func (m *Manager) SetHandler(h EventHandler) {
	m.handler = h
}

// Serve registers t, greets it with its connection id and blocks reading
// from it until the transport fails or the connection is torn down.
func (m *Manager) Serve(t Transport) {
	c := m.register(t)
	go m.writeLoop(c)

	if _, err := c.outbox.Send(protocol.TypeConnectionID, protocol.ConnectionID{ConnectionID: c.id}); err != nil {
		m.log.Warn("greeting failed", zap.String("conn_id", c.id), zap.Error(err))
	}
	m.handler.OnConnect(c.id)

	m.readLoop(c)
	m.Disconnect(c.id)
}

func (m *Manager) register(t Transport) *Connection {
	c := &Connection{
		id:        uuid.NewString(),
		transport: t,
		send:      make(chan []byte, m.opts.SendBuffer),
		inbox:     reliable.NewInbox(m.opts.DedupWindow),
		done:      make(chan struct{}),
	}
	log := m.log.With(zap.String("conn_id", c.id))
	c.outbox = reliable.NewOutbox(m.opts.Policy, func(env protocol.Envelope) error {
		frame, err := m.codec.Encode(env)
		if err != nil {
			return err
		}
		return c.enqueue(frame)
	}, func() {
		log.Warn("peer unreachable, disconnecting")
		m.Disconnect(c.id)
	}, log)

	m.mu.Lock()
	m.conns[c.id] = c
	m.mu.Unlock()

	log.Info("connection accepted", zap.String("remote", t.RemoteAddr()))
	return c
}

func (m *Manager) readLoop(c *Connection) {
	for {
		frame, err := c.transport.ReadFrame()
		if err != nil {
			if isUnexpectedClose(err) {
				m.log.Warn("unexpected close", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}

		env, err := m.codec.Decode(frame)
		if err != nil {
			m.SendError(c.id, err)
			continue
		}
		if env.Type == protocol.TypeAck {
			if !c.outbox.Ack(env.Seq) {
				m.log.Debug("ignored ack", zap.String("conn_id", c.id), zap.Uint64("seq", env.Seq))
			}
			continue
		}
		if !c.inbox.Admit(env) {
			m.log.Debug("duplicate dropped",
				zap.String("conn_id", c.id),
				zap.String("type", string(env.Type)),
				zap.Uint64("seq", env.Seq),
				zap.String("token", env.Token),
			)
			continue
		}
		if err := m.handler.OnMessage(c.id, env); err != nil {
			c.inbox.Forget(env)
			m.SendError(c.id, err)
		}
	}
}

func (m *Manager) writeLoop(c *Connection) {
	var tick <-chan time.Time
	p, canPing := c.transport.(pinger)
	if canPing && m.opts.PingPeriod > 0 {
		ticker := time.NewTicker(m.opts.PingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case frame := <-c.send:
			if err := c.transport.WriteFrame(frame); err != nil {
				m.log.Info("write failed", zap.String("conn_id", c.id), zap.Error(err))
				m.Disconnect(c.id)
				return
			}
		case <-tick:
			if err := p.Ping(); err != nil {
				m.Disconnect(c.id)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (m *Manager) lookup(connID string) (*Connection, error) {
	m.mu.RLock()
	c, ok := m.conns[connID]
	m.mu.RUnlock()
	if !ok {
		return nil, apperr.New(apperr.Unreachable, "connection %s is gone", connID)
	}
	return c, nil
}

// Send delivers a message reliably to one connection.
func (m *Manager) Send(connID string, t protocol.Type, payload any) error {
	c, err := m.lookup(connID)
	if err != nil {
		return err
	}
	_, err = c.outbox.Send(t, payload)
	return err
}

// SendError reports err to the connection as an Error message.
func (m *Manager) SendError(connID string, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		m.log.Error("internal error", zap.String("conn_id", connID), zap.Error(err))
	}
	reply := protocol.Error{ErrorType: string(kind), Message: apperr.Message(err), Code: kind.Code()}
	if sendErr := m.Send(connID, protocol.TypeError, reply); sendErr != nil {
		m.log.Debug("error reply not delivered", zap.String("conn_id", connID), zap.Error(sendErr))
	}
}

func (m *Manager) Affiliation(connID string) (Affiliation, error) {
	c, err := m.lookup(connID)
	if err != nil {
		return Affiliation{}, err
	}
	return c.Affiliation(), nil
}

func (m *Manager) SetAffiliation(connID string, aff Affiliation) error {
	c, err := m.lookup(connID)
	if err != nil {
		return err
	}
	c.setAffiliation(aff)
	return nil
}

// ClearAffiliation detaches the connection from its room, if it still exists.
func (m *Manager) ClearAffiliation(connID string) {
	if c, err := m.lookup(connID); err == nil {
		c.setAffiliation(Affiliation{})
	}
}

// Disconnect tears the connection down and notifies the handler once.
func (m *Manager) Disconnect(connID string) {
	m.mu.Lock()
	c, ok := m.conns[connID]
	delete(m.conns, connID)
	m.mu.Unlock()
	if !ok || !c.close() {
		return
	}
	aff := c.Affiliation()
	m.log.Info("connection closed",
		zap.String("conn_id", connID),
		zap.String("room_id", aff.RoomID),
		zap.String("player_id", aff.PlayerID),
	)
	m.handler.OnDisconnect(connID, aff)
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// CloseAll disconnects every connection.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		m.Disconnect(id)
	}
}
