package protocol

import (
	"souls/internal/apperr"
)

// Category decides which authority handles an inbound message.
type Category uint8

const (
	Lobby Category = iota + 1
	Game
)

func (c Category) String() string {
	switch c {
	case Lobby:
		return "Lobby"
	case Game:
		return "Game"
	}
	return "Unclassified"
}

// categories must name every client message type except TypeAck.
var categories = map[Type]Category{
	TypeCreateRoom:  Lobby,
	TypeJoinRoom:    Lobby,
	TypeLeaveRoom:   Lobby,
	TypePlayerReady: Lobby,
	TypeChat:        Lobby,
	TypeDestroyRoom: Lobby,
	TypePing:        Lobby,
	TypeTurnPass:    Game,
	TypePlayLoot:    Game,
}

// ClientTypes lists every routable client message type.
func ClientTypes() []Type {
	return []Type{
		TypeCreateRoom, TypeJoinRoom, TypeLeaveRoom, TypePlayerReady,
		TypeChat, TypeDestroyRoom, TypePing, TypeTurnPass, TypePlayLoot,
	}
}

// Classify maps a message type to its category.
func Classify(t Type) (Category, error) {
	c, ok := categories[t]
	if !ok {
		return 0, apperr.New(apperr.UnknownMessage, "unknown message type %q", t)
	}
	return c, nil
}
