package router

import (
	"souls/internal/apperr"
	"souls/internal/lobby"
	"souls/internal/network"
	"souls/internal/protocol"
	"souls/internal/session"
)

func handlePing(r *Router, connID string, _ network.Affiliation, _ protocol.Envelope) error {
	return r.conns.Send(connID, protocol.TypePong, nil)
}

func handleCreateRoom(r *Router, connID string, aff network.Affiliation, env protocol.Envelope) error {
	var p protocol.CreateRoom
	if err := protocol.DecodePayload(env.Payload, &p); err != nil {
		return err
	}
	if err := r.releaseStale(connID, aff); err != nil {
		return err
	}

	roomID, playerID, err := r.lobby.CreateRoom(connID, p.RoomName, p.FirstPlayerName)
	if err != nil {
		return err
	}
	r.attach(connID, network.Affiliation{RoomID: roomID, PlayerID: playerID})
	r.reply(connID, protocol.TypeRoomCreated, protocol.RoomCreated{RoomID: roomID, PlayerID: playerID})
	return nil
}

func handleJoinRoom(r *Router, connID string, aff network.Affiliation, env protocol.Envelope) error {
	var p protocol.JoinRoom
	if err := protocol.DecodePayload(env.Payload, &p); err != nil {
		return err
	}
	if err := r.releaseStale(connID, aff); err != nil {
		return err
	}

	res, err := r.lobby.JoinRoom(connID, p.RoomID, p.PlayerName)
	if err != nil {
		return err
	}
	r.attach(connID, network.Affiliation{RoomID: p.RoomID, PlayerID: res.PlayerID})
	r.bc.ToAll(res.Members, protocol.TypePlayerJoined, protocol.PlayerJoined{
		RoomID:     p.RoomID,
		PlayerName: p.PlayerName,
		PlayerID:   res.PlayerID,
	})
	return nil
}

func handleLeaveRoom(r *Router, connID string, aff network.Affiliation, _ protocol.Envelope) error {
	if !aff.InRoom() {
		return apperr.New(apperr.NotInRoom, "you are not in a room")
	}
	res, err := r.lobby.LeaveRoom(aff.PlayerID)
	if err != nil {
		return err
	}
	r.conns.ClearAffiliation(connID)

	left := protocol.PlayerLeft{PlayerName: res.Player.Name, PlayerID: res.Player.PlayerID}
	r.bc.To(res.Player, protocol.TypePlayerLeft, left)
	r.bc.ToAll(res.Remaining, protocol.TypePlayerLeft, left)
	r.bc.ToAll(res.Remaining, protocol.TypePlayersReady, protocol.PlayersReady{PlayersReady: res.Ready})
	r.announceStart(res.Remaining, res.Session)
	return nil
}

func handlePlayerReady(r *Router, _ string, aff network.Affiliation, _ protocol.Envelope) error {
	if !aff.InRoom() {
		return apperr.New(apperr.NotInRoom, "you are not in a room")
	}
	res, err := r.lobby.SetReady(aff.PlayerID)
	if err != nil {
		return err
	}
	r.bc.ToAll(res.Members, protocol.TypePlayersReady, protocol.PlayersReady{PlayersReady: res.Ready})
	r.announceStart(res.Members, res.Session)
	return nil
}

// announceStart tells the members the turn order of a game the lobby just
// started, then lets the session send its first board state.
func (r *Router) announceStart(members []session.Member, sess *session.Session) {
	if sess == nil {
		return
	}
	r.bc.ToAll(members, protocol.TypeRoomGameStart, protocol.RoomGameStart{TurnOrder: sess.Order().IDs()})
	sess.Start()
}

func handleChat(r *Router, _ string, aff network.Affiliation, env protocol.Envelope) error {
	if !aff.InRoom() {
		return apperr.New(apperr.NotInRoom, "you are not in a room")
	}
	var p protocol.Chat
	if err := protocol.DecodePayload(env.Payload, &p); err != nil {
		return err
	}
	sender, err := r.lobby.Member(aff.PlayerID)
	if err != nil {
		return err
	}
	members, err := r.lobby.Members(aff.RoomID)
	if err != nil {
		return err
	}
	r.bc.ToAll(members, protocol.TypeChatMessage, protocol.ChatMessage{PlayerName: sender.Name, Message: p.Message})
	return nil
}

func handleDestroyRoom(r *Router, _ string, aff network.Affiliation, _ protocol.Envelope) error {
	if !aff.InRoom() {
		return apperr.New(apperr.NotInRoom, "you are not in a room")
	}
	members, err := r.lobby.DestroyRoom(aff.RoomID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m.ConnID == "" {
			continue
		}
		r.conns.ClearAffiliation(m.ConnID)
		r.bc.To(m, protocol.TypeRoomDestroyed, protocol.RoomDestroyed{RoomID: aff.RoomID})
	}
	return nil
}

// releaseStale lets a connection whose room is over (finished or swept)
// move on. A connection in a live room must leave it first. Releasing is
// idempotent, so a request rejected after it can still be redelivered.
func (r *Router) releaseStale(connID string, aff network.Affiliation) error {
	if !aff.InRoom() {
		return nil
	}
	if state, ok := r.lobby.RoomState(aff.RoomID); ok && state != lobby.StateFinished {
		return apperr.New(apperr.PlayerAlreadyInRoom, "you are already in room %s", aff.RoomID)
	}
	_, _ = r.lobby.LeaveRoom(aff.PlayerID)
	r.conns.ClearAffiliation(connID)
	return nil
}
