package reliable

import (
	"sync"

	"souls/internal/protocol"
)

// Inbox drops inbound messages that were already admitted once. A client
// may tag a message with a strictly increasing seq, an idempotency token,
// or both. Untagged messages are always admitted.
type Inbox struct {
	mu       sync.Mutex
	lastSeq  uint64
	prevSeq  uint64
	tokens   map[string]struct{}
	order    []string
	capacity int
}

// NewInbox remembers at most capacity tokens, forgetting the oldest first.
func NewInbox(capacity int) *Inbox {
	if capacity < 1 {
		capacity = 1
	}
	return &Inbox{tokens: make(map[string]struct{}, capacity), capacity: capacity}
}

// Admit reports whether env is new. It records env as seen when it is.
func (in *Inbox) Admit(env protocol.Envelope) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	if env.Seq > 0 && env.Seq <= in.lastSeq {
		return false
	}
	if env.Token != "" {
		if _, seen := in.tokens[env.Token]; seen {
			return false
		}
		in.remember(env.Token)
	}
	if env.Seq > 0 {
		in.prevSeq, in.lastSeq = in.lastSeq, env.Seq
	}
	return true
}

// Forget undoes the admission of env so a redelivery is admitted again.
// Only the most recently admitted seq can be rolled back.
func (in *Inbox) Forget(env protocol.Envelope) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if env.Token != "" {
		if _, seen := in.tokens[env.Token]; seen {
			delete(in.tokens, env.Token)
			for i, t := range in.order {
				if t == env.Token {
					in.order = append(in.order[:i], in.order[i+1:]...)
					break
				}
			}
		}
	}
	if env.Seq > 0 && env.Seq == in.lastSeq {
		in.lastSeq = in.prevSeq
	}
}

func (in *Inbox) remember(token string) {
	if len(in.order) >= in.capacity {
		oldest := in.order[0]
		in.order = in.order[1:]
		delete(in.tokens, oldest)
	}
	in.tokens[token] = struct{}{}
	in.order = append(in.order, token)
}
