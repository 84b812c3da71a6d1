package reliable

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"souls/internal/apperr"
	"souls/internal/protocol"
)

// WriteFunc hands a frame to the transport. It must not block; a frame it
// fails to write stays pending and is retransmitted on the next timeout.
type WriteFunc func(protocol.Envelope) error

type pending struct {
	env      protocol.Envelope
	attempts int
	timer    *time.Timer
}

// Outbox sequences the outbound stream of one connection and retransmits
// every message until it is acknowledged or the attempt budget runs out.
type Outbox struct {
	mu            sync.Mutex
	policy        Policy
	write         WriteFunc
	onUnreachable func()
	log           *zap.Logger

	next    uint64
	pending map[uint64]*pending
	closed  bool
}

// NewOutbox returns an outbox writing through write. onUnreachable runs
// once, outside any lock, when a message exhausts its attempts.
func NewOutbox(policy Policy, write WriteFunc, onUnreachable func(), log *zap.Logger) *Outbox {
	if log == nil {
		log = zap.NewNop()
	}
	if onUnreachable == nil {
		onUnreachable = func() {}
	}
	return &Outbox{
		policy:        policy,
		write:         write,
		onUnreachable: onUnreachable,
		log:           log,
		pending:       make(map[uint64]*pending),
	}
}

// Send assigns the next sequence number to the message and transmits it.
func (o *Outbox) Send(t protocol.Type, payload any) (uint64, error) {
	env, err := protocol.NewEnvelope(t, payload)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "encode outbound payload")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return 0, apperr.New(apperr.Unreachable, "connection is closed")
	}

	o.next++
	seq := o.next
	env.Seq = seq
	p := &pending{env: env, attempts: 1}
	o.pending[seq] = p
	p.timer = time.AfterFunc(o.policy.Wait(1), func() { o.expire(seq) })

	if err := o.write(env); err != nil {
		o.log.Debug("write deferred to retransmit", zap.Uint64("seq", seq), zap.Error(err))
	}
	return seq, nil
}

// Ack clears seq from the pending set. Unknown or already cleared numbers
// are ignored and reported as false.
func (o *Outbox) Ack(seq uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.pending[seq]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(o.pending, seq)
	return true
}

func (o *Outbox) expire(seq uint64) {
	o.mu.Lock()
	p, ok := o.pending[seq]
	if !ok || o.closed {
		o.mu.Unlock()
		return
	}
	if p.attempts >= o.policy.MaxAttempts {
		o.log.Warn("delivery budget exhausted",
			zap.Uint64("seq", seq),
			zap.String("type", string(p.env.Type)),
			zap.Int("attempts", p.attempts),
		)
		o.closeLocked()
		o.mu.Unlock()
		o.onUnreachable()
		return
	}

	p.attempts++
	if err := o.write(p.env); err != nil {
		o.log.Debug("retransmit write failed", zap.Uint64("seq", seq), zap.Error(err))
	}
	p.timer = time.AfterFunc(o.policy.Wait(p.attempts), func() { o.expire(seq) })
	o.mu.Unlock()
}

// Close stops every retransmit timer. Later sends fail with Unreachable.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closeLocked()
}

func (o *Outbox) closeLocked() {
	if o.closed {
		return
	}
	o.closed = true
	for seq, p := range o.pending {
		p.timer.Stop()
		delete(o.pending, seq)
	}
}

func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// LastSeq is the highest sequence number issued so far.
func (o *Outbox) LastSeq() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.next
}
