// Package protocol defines the messages exchanged with clients and the
// envelope they travel in.
package protocol

import (
	"encoding/json"
)

// Type names a message on the wire.
type Type string

// Client to server.
const (
	TypeCreateRoom  Type = "CreateRoom"
	TypeJoinRoom    Type = "JoinRoom"
	TypeLeaveRoom   Type = "LeaveRoom"
	TypePlayerReady Type = "PlayerReady"
	TypeChat        Type = "Chat"
	TypeDestroyRoom Type = "DestroyRoom"
	TypePing        Type = "Ping"
	TypeTurnPass    Type = "TurnPass"
	TypePlayLoot    Type = "PlayLoot"

	// TypeAck acknowledges an outbound sequence number. It is consumed by
	// the connection layer and never routed.
	TypeAck Type = "Ack"
)

// Server to client.
const (
	TypeConnectionID       Type = "ConnectionId"
	TypePong               Type = "Pong"
	TypeRoomCreated        Type = "RoomCreated"
	TypePlayerJoined       Type = "PlayerJoined"
	TypePlayerLeft         Type = "PlayerLeft"
	TypePlayersReady       Type = "PlayersReady"
	TypeRoomGameStart      Type = "RoomGameStart"
	TypeRoomDestroyed      Type = "RoomDestroyed"
	TypeChatMessage        Type = "ChatMessage"
	TypePublicBoardState   Type = "PublicBoardState"
	TypePrivateBoardState  Type = "PrivateBoardState"
	TypeTurnChange         Type = "TurnChange"
	TypePhaseChange        Type = "PhaseChange"
	TypeCardDrawn          Type = "CardDrawn"
	TypePlayerDisconnected Type = "PlayerDisconnected"
	TypeGameEnded          Type = "GameEnded"
	TypeError              Type = "Error"
)

// Envelope is the frame for every message in both directions. Outbound
// frames always carry Seq. Inbound frames may carry Seq or Token so that
// client retries can be recognised.
type Envelope struct {
	Type    Type            `json:"type"`
	Seq     uint64          `json:"seq,omitempty"`
	Token   string          `json:"token,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ---- client payloads ----

type CreateRoom struct {
	RoomName        string `json:"room_name" validate:"required,max=100"`
	FirstPlayerName string `json:"first_player_name" validate:"required,max=50,playername"`
}

type JoinRoom struct {
	PlayerName string `json:"player_name" validate:"required,max=50,playername"`
	RoomID     string `json:"room_id" validate:"required"`
}

type Chat struct {
	Message string `json:"message" validate:"required,max=500"`
}

type PlayLoot struct {
	CardID string `json:"card_id" validate:"required"`
}

// ---- server payloads ----

type ConnectionID struct {
	ConnectionID string `json:"connection_id"`
}

type RoomCreated struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
}

type PlayerJoined struct {
	RoomID     string `json:"room_id"`
	PlayerName string `json:"player_name"`
	PlayerID   string `json:"player_id"`
}

type PlayerLeft struct {
	PlayerName string `json:"player_name"`
	PlayerID   string `json:"player_id"`
}

type PlayersReady struct {
	PlayersReady []string `json:"players_ready"`
}

type RoomGameStart struct {
	TurnOrder []string `json:"turn_order"`
}

type RoomDestroyed struct {
	RoomID string `json:"room_id"`
}

type ChatMessage struct {
	PlayerName string `json:"player_name"`
	Message    string `json:"message"`
}

type TurnChange struct {
	NextPlayerID string `json:"next_player_id"`
	Turn         int    `json:"turn"`
}

type PhaseChange struct {
	PlayerID string `json:"player_id"`
	Phase    string `json:"phase"`
}

type CardDrawn struct {
	PlayerID string `json:"player_id"`
}

type PlayerDisconnected struct {
	PlayerID string `json:"player_id"`
}

type GameEnded struct {
	WinnerID string `json:"winner_id"`
}

type Error struct {
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
}
