// Package networktest provides an in-memory transport and a scripted
// client for tests that drive the connection manager without sockets.
package networktest

import (
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"souls/internal/protocol"
	"souls/internal/reliable"
)

// Pipe is a Transport whose other end is held by the test.
type Pipe struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func NewPipe() *Pipe {
	return &Pipe{
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 1024),
		closed: make(chan struct{}),
	}
}

func (p *Pipe) ReadFrame() ([]byte, error) {
	select {
	case f := <-p.in:
		return f, nil
	case <-p.closed:
		return nil, io.EOF
	}
}

func (p *Pipe) WriteFrame(frame []byte) error {
	select {
	case <-p.closed:
		return io.ErrClosedPipe
	default:
	}
	select {
	case p.out <- frame:
		return nil
	case <-p.closed:
		return io.ErrClosedPipe
	}
}

func (p *Pipe) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *Pipe) RemoteAddr() string { return "pipe" }

// Closed is closed once the server side tears the pipe down.
func (p *Pipe) Closed() <-chan struct{} { return p.closed }

// Client plays the remote end of a Pipe: it acks every frame it receives
// and releases them in sequence order, once each.
type Client struct {
	t       testing.TB
	Pipe    *Pipe
	recv    *reliable.Receiver
	queue   []protocol.Envelope
	NoAck   bool
	Timeout time.Duration
}

func NewClient(t testing.TB) *Client {
	return &Client{t: t, Pipe: NewPipe(), recv: reliable.NewReceiver(), Timeout: 2 * time.Second}
}

// SendEnvelope writes a raw envelope to the server.
func (c *Client) SendEnvelope(env protocol.Envelope) {
	c.t.Helper()
	frame, err := json.Marshal(env)
	require.NoError(c.t, err)
	c.Pipe.in <- frame
}

func (c *Client) Send(t protocol.Type, payload any) {
	c.t.Helper()
	env, err := protocol.NewEnvelope(t, payload)
	require.NoError(c.t, err)
	c.SendEnvelope(env)
}

func (c *Client) Ack(seq uint64) {
	c.SendEnvelope(protocol.Envelope{Type: protocol.TypeAck, Seq: seq})
}

// Raw returns the next frame written by the server, without acking it.
func (c *Client) Raw() (protocol.Envelope, bool) {
	select {
	case f := <-c.Pipe.out:
		var env protocol.Envelope
		require.NoError(c.t, json.Unmarshal(f, &env))
		return env, true
	case <-time.After(c.Timeout):
		return protocol.Envelope{}, false
	}
}

// Next returns the next in-order message.
func (c *Client) Next() (protocol.Envelope, bool) {
	for len(c.queue) == 0 {
		env, ok := c.Raw()
		if !ok {
			return protocol.Envelope{}, false
		}
		if !c.NoAck {
			c.Ack(env.Seq)
		}
		c.queue = append(c.queue, c.recv.Receive(env)...)
	}
	env := c.queue[0]
	c.queue = c.queue[1:]
	return env, true
}

// Expect skips messages until one of type typ arrives and decodes its
// payload into v when v is not nil.
func (c *Client) Expect(typ protocol.Type, v any) protocol.Envelope {
	c.t.Helper()
	var skipped []protocol.Type
	for {
		env, ok := c.Next()
		require.True(c.t, ok, "timed out waiting for %s, skipped %v", typ, skipped)
		if env.Type != typ {
			skipped = append(skipped, env.Type)
			continue
		}
		if v != nil {
			require.NoError(c.t, json.Unmarshal(env.Payload, v))
		}
		return env
	}
}

// ExpectError waits for an Error message and returns it.
func (c *Client) ExpectError() protocol.Error {
	c.t.Helper()
	var e protocol.Error
	c.Expect(protocol.TypeError, &e)
	return e
}

// In is the server's inbound frame queue, for writing raw bytes.
func (p *Pipe) In() chan<- []byte { return p.in }
