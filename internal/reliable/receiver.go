package reliable

import (
	"slices"

	"souls/internal/protocol"
)

// Receiver is the client half of the stream: it releases envelopes in
// sequence order exactly once, buffering early arrivals and discarding
// retransmissions of what it already released. It is not safe for
// concurrent use.
type Receiver struct {
	expected uint64
	buffer   map[uint64]protocol.Envelope
}

func NewReceiver() *Receiver {
	return &Receiver{expected: 1, buffer: make(map[uint64]protocol.Envelope)}
}

// Receive returns the envelopes that became deliverable, in order. Every
// call should still be answered with an ack for env.Seq, even for
// duplicates, since the earlier ack may have been lost.
func (r *Receiver) Receive(env protocol.Envelope) []protocol.Envelope {
	if env.Seq < r.expected {
		return nil
	}
	if _, dup := r.buffer[env.Seq]; dup {
		return nil
	}
	r.buffer[env.Seq] = env

	var out []protocol.Envelope
	for {
		next, ok := r.buffer[r.expected]
		if !ok {
			break
		}
		delete(r.buffer, r.expected)
		out = append(out, next)
		r.expected++
	}
	return out
}

// Buffered returns the sequence numbers waiting on a gap.
func (r *Receiver) Buffered() []uint64 {
	out := make([]uint64, 0, len(r.buffer))
	for seq := range r.buffer {
		out = append(out, seq)
	}
	slices.Sort(out)
	return out
}
