package network

import (
	"errors"
	"sync"

	"souls/internal/reliable"
)

var (
	errClosed       = errors.New("connection closed")
	errBackpressure = errors.New("send buffer full")
)

// Affiliation is the room a connection currently speaks for. Both fields
// are empty for an unaffiliated connection.
type Affiliation struct {
	RoomID   string
	PlayerID string
}

func (a Affiliation) InRoom() bool { return a.RoomID != "" }

// Connection is owned by the Manager. Other components hold only its id.
type Connection struct {
	id        string
	transport Transport
	send      chan []byte
	outbox    *reliable.Outbox
	inbox     *reliable.Inbox

	mu  sync.RWMutex
	aff Affiliation

	done      chan struct{}
	closeOnce sync.Once
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) Affiliation() Affiliation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.aff
}

func (c *Connection) setAffiliation(a Affiliation) {
	c.mu.Lock()
	c.aff = a
	c.mu.Unlock()
}

// enqueue never blocks: a frame that does not fit stays in the outbox and
// goes out again on retransmit.
func (c *Connection) enqueue(frame []byte) error {
	select {
	case <-c.done:
		return errClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return errBackpressure
	}
}

func (c *Connection) close() bool {
	closed := false
	c.closeOnce.Do(func() {
		close(c.done)
		c.outbox.Close()
		_ = c.transport.Close()
		closed = true
	})
	return closed
}
