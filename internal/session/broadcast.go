package session

import (
	"go.uber.org/zap"

	"souls/internal/apperr"
	"souls/internal/game/board"
	"souls/internal/game/turn"
	"souls/internal/protocol"
)

// Sender delivers one message to one connection through the reliable layer.
type Sender interface {
	Send(connID string, t protocol.Type, payload any) error
}

// Member is a seated player and the connection that currently speaks for
// it. An empty ConnID means the player is disconnected.
type Member struct {
	PlayerID string
	Name     string
	ConnID   string
}

// Broadcaster fans room updates out to member connections.
type Broadcaster struct {
	out Sender
	log *zap.Logger
}

func NewBroadcaster(out Sender, log *zap.Logger) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{out: out, log: log}
}

func (b *Broadcaster) To(m Member, t protocol.Type, payload any) {
	if m.ConnID == "" {
		return
	}
	if err := b.out.Send(m.ConnID, t, payload); err != nil {
		b.log.Debug("message not delivered",
			zap.String("player_id", m.PlayerID),
			zap.String("type", string(t)),
			zap.Error(err),
		)
	}
}

func (b *Broadcaster) ToAll(members []Member, t protocol.Type, payload any) {
	for _, m := range members {
		b.To(m, t, payload)
	}
}

// Error reports a rejection to one member.
func (b *Broadcaster) Error(m Member, err error) {
	kind := apperr.KindOf(err)
	b.To(m, protocol.TypeError, protocol.Error{
		ErrorType: string(kind),
		Message:   apperr.Message(err),
		Code:      kind.Code(),
	})
}

// State sends the public view to every member and each member its own hand.
func (b *Broadcaster) State(members []Member, brd *board.Board, m *turn.Machine) {
	b.ToAll(members, protocol.TypePublicBoardState, brd.Public(m))
	for _, mem := range members {
		if mem.ConnID == "" {
			continue
		}
		priv, err := brd.Private(mem.PlayerID)
		if err != nil {
			b.log.Error("private view", zap.String("player_id", mem.PlayerID), zap.Error(err))
			continue
		}
		b.To(mem, protocol.TypePrivateBoardState, priv)
	}
}
