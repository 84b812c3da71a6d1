package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"souls/internal/protocol"
)

var errUsage = errors.New("unknown command, type help")

// parseCommand turns one input line into an envelope. Every command gets
// a fresh idempotency token so a resent line is applied once.
func parseCommand(line string) (protocol.Envelope, error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	var (
		t       protocol.Type
		payload any
	)
	switch strings.ToLower(verb) {
	case "create":
		i := strings.LastIndex(rest, " ")
		if i < 0 {
			return protocol.Envelope{}, fmt.Errorf("usage: create <room name> <player name>")
		}
		t = protocol.TypeCreateRoom
		payload = protocol.CreateRoom{RoomName: strings.TrimSpace(rest[:i]), FirstPlayerName: rest[i+1:]}
	case "join":
		roomID, name, ok := strings.Cut(rest, " ")
		if !ok {
			return protocol.Envelope{}, fmt.Errorf("usage: join <room id> <player name>")
		}
		t = protocol.TypeJoinRoom
		payload = protocol.JoinRoom{RoomID: roomID, PlayerName: strings.TrimSpace(name)}
	case "chat":
		t = protocol.TypeChat
		payload = protocol.Chat{Message: rest}
	case "play":
		if rest == "" {
			return protocol.Envelope{}, fmt.Errorf("usage: play <card id>")
		}
		t = protocol.TypePlayLoot
		payload = protocol.PlayLoot{CardID: rest}
	case "leave":
		t = protocol.TypeLeaveRoom
	case "ready":
		t = protocol.TypePlayerReady
	case "destroy":
		t = protocol.TypeDestroyRoom
	case "ping":
		t = protocol.TypePing
	case "pass":
		t = protocol.TypeTurnPass
	default:
		return protocol.Envelope{}, errUsage
	}

	env, err := protocol.NewEnvelope(t, payload)
	if err != nil {
		return protocol.Envelope{}, err
	}
	env.Token = uuid.NewString()
	return env, nil
}
