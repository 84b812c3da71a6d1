// Package router classifies inbound messages and sends lobby operations to
// the lobby manager and game operations to the room's session.
package router

import (
	"context"
	"time"

	"go.uber.org/zap"

	"souls/internal/apperr"
	"souls/internal/lobby"
	"souls/internal/network"
	"souls/internal/protocol"
	"souls/internal/session"
)

// Conns is the part of the connection manager the router needs.
type Conns interface {
	session.Sender
	Affiliation(connID string) (network.Affiliation, error)
	SetAffiliation(connID string, aff network.Affiliation) error
	ClearAffiliation(connID string)
}

type lobbyHandlerFunc func(r *Router, connID string, aff network.Affiliation, env protocol.Envelope) error

type Router struct {
	conns          Conns
	lobby          *lobby.Manager
	registry       *session.Registry
	bc             *session.Broadcaster
	enqueueTimeout time.Duration
	handlers       map[protocol.Type]lobbyHandlerFunc
	log            *zap.Logger
}

func New(conns Conns, lm *lobby.Manager, reg *session.Registry, enqueueTimeout time.Duration, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("router")
	return &Router{
		conns:          conns,
		lobby:          lm,
		registry:       reg,
		bc:             session.NewBroadcaster(conns, log),
		enqueueTimeout: enqueueTimeout,
		log:            log,
		handlers: map[protocol.Type]lobbyHandlerFunc{
			protocol.TypePing:        handlePing,
			protocol.TypeCreateRoom:  handleCreateRoom,
			protocol.TypeJoinRoom:    handleJoinRoom,
			protocol.TypeLeaveRoom:   handleLeaveRoom,
			protocol.TypePlayerReady: handlePlayerReady,
			protocol.TypeChat:        handleChat,
			protocol.TypeDestroyRoom: handleDestroyRoom,
		},
	}
}

func (r *Router) OnConnect(connID string) {
	r.log.Debug("connected", zap.String("conn_id", connID))
}

// OnMessage routes one inbound message. A returned error means nothing
// changed, so the connection manager reports it and accepts a redelivery.
// Failures after a lobby or game mutation are logged here instead.
func (r *Router) OnMessage(connID string, env protocol.Envelope) error {
	category, err := protocol.Classify(env.Type)
	if err != nil {
		return err
	}
	aff, err := r.conns.Affiliation(connID)
	if err != nil {
		r.log.Debug("message from closed connection", zap.String("conn_id", connID), zap.Error(err))
		return nil
	}

	switch category {
	case protocol.Lobby:
		h, ok := r.handlers[env.Type]
		if !ok {
			err = apperr.New(apperr.Internal, "no lobby handler for %s", env.Type)
			break
		}
		err = h(r, connID, aff, env)
	case protocol.Game:
		err = r.routeGame(connID, aff, env)
	}
	if err != nil {
		r.log.Debug("request rejected",
			zap.String("conn_id", connID),
			zap.String("type", string(env.Type)),
			zap.Error(err),
		)
	}
	return err
}

// reply sends a response to a request that already changed state.
func (r *Router) reply(connID string, t protocol.Type, payload any) {
	if err := r.conns.Send(connID, t, payload); err != nil {
		r.log.Debug("reply not delivered",
			zap.String("conn_id", connID),
			zap.String("type", string(t)),
			zap.Error(err),
		)
	}
}

// attach records the room membership of connID after the lobby accepted it.
func (r *Router) attach(connID string, aff network.Affiliation) {
	if err := r.conns.SetAffiliation(connID, aff); err != nil {
		r.log.Debug("connection gone before joining room",
			zap.String("conn_id", connID),
			zap.String("room_id", aff.RoomID),
			zap.Error(err),
		)
	}
}

func (r *Router) routeGame(connID string, aff network.Affiliation, env protocol.Envelope) error {
	if !aff.InRoom() {
		return apperr.New(apperr.NotInRoom, "you are not in a room")
	}
	sess, err := r.registry.Lookup(aff.RoomID)
	if err != nil {
		if state, ok := r.lobby.RoomState(aff.RoomID); ok && (state == lobby.StateLobby || state == lobby.StateStarting) {
			return apperr.New(apperr.GameNotStarted, "the game in room %s has not started", aff.RoomID)
		}
		return err
	}

	cmd := session.Command{PlayerID: aff.PlayerID}
	switch env.Type {
	case protocol.TypeTurnPass:
		cmd.Kind = session.CmdTurnPass
	case protocol.TypePlayLoot:
		var p protocol.PlayLoot
		if err := protocol.DecodePayload(env.Payload, &p); err != nil {
			return err
		}
		cmd.Kind = session.CmdPlayLoot
		cmd.CardID = p.CardID
	default:
		return apperr.New(apperr.Internal, "no game command for %s", env.Type)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.enqueueTimeout)
	defer cancel()
	return sess.Enqueue(ctx, cmd)
}

// OnDisconnect tells the room, or the running game, that a member is gone.
func (r *Router) OnDisconnect(connID string, aff network.Affiliation) {
	if !aff.InRoom() {
		return
	}
	res, err := r.lobby.Disconnect(aff.PlayerID)
	if err != nil {
		r.log.Debug("disconnect of unknown member", zap.String("player_id", aff.PlayerID), zap.Error(err))
		return
	}

	switch res.State {
	case lobby.StateLobby:
		r.bc.ToAll(res.Remaining, protocol.TypePlayerLeft, protocol.PlayerLeft{PlayerName: res.Player.Name, PlayerID: res.Player.PlayerID})
		r.bc.ToAll(res.Remaining, protocol.TypePlayersReady, protocol.PlayersReady{PlayersReady: res.Ready})
		r.announceStart(res.Remaining, res.Session)
	case lobby.StateInGame:
		ctx, cancel := context.WithTimeout(context.Background(), r.enqueueTimeout)
		defer cancel()
		err := res.Session.Enqueue(ctx, session.Command{Kind: session.CmdDisconnect, PlayerID: aff.PlayerID})
		if err != nil && !apperr.Is(err, apperr.SessionNotFound) {
			r.log.Warn("session not told about disconnect", zap.String("room_id", res.RoomID), zap.Error(err))
		}
	}
}
