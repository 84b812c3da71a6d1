// Package session runs live games. Each Session is an actor: one goroutine
// drains its mailbox and is the only code that touches its board and turn
// state. Sessions are found by room id through the Registry.
package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"souls/internal/apperr"
	"souls/internal/game/board"
	"souls/internal/game/card"
	"souls/internal/game/turn"
	"souls/internal/protocol"
)

type CommandKind uint8

const (
	CmdTurnPass CommandKind = iota + 1
	CmdPlayLoot
	CmdDisconnect
)

// Command is one mailbox entry.
type Command struct {
	Kind     CommandKind
	PlayerID string
	CardID   string
}

type State int32

const (
	Waiting State = iota
	Running
	Finished
	Stopped
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "Waiting"
	case Running:
		return "Running"
	case Finished:
		return "Finished"
	case Stopped:
		return "Stopped"
	}
	return "Unknown"
}

type Config struct {
	RoomID      string
	Members     []Member
	Order       turn.Order
	Catalog     *card.Catalog
	Rand        *rand.Rand
	Board       board.Settings
	SoulsToWin  int
	MailboxSize int
}

type Deps struct {
	Registry *Registry
	Out      Sender
	// OnFinish runs on the session goroutine after GameEnded went out and
	// the registry entry was released.
	OnFinish func(roomID, winnerID string)
	Log      *zap.Logger
}

type Session struct {
	id         string
	members    map[string]*Member
	seats      []string
	board      *board.Board
	machine    *turn.Machine
	soulsToWin int

	mailbox   chan Command
	start     chan struct{}
	startOnce sync.Once
	done      chan struct{}
	stopOnce  sync.Once
	state     atomic.Int32

	registry *Registry
	bc       *Broadcaster
	onFinish func(roomID, winnerID string)
	log      *zap.Logger
}

func New(cfg Config, deps Deps) (*Session, error) {
	if cfg.Order.Len() == 0 {
		return nil, errors.New("session needs a turn order")
	}
	if cfg.SoulsToWin < 1 {
		return nil, errors.New("souls to win must be positive")
	}
	if cfg.MailboxSize < 1 {
		cfg.MailboxSize = 1
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.OnFinish == nil {
		deps.OnFinish = func(string, string) {}
	}

	members := make(map[string]*Member, len(cfg.Members))
	for i := range cfg.Members {
		m := cfg.Members[i]
		members[m.PlayerID] = &m
	}
	seats := cfg.Order.IDs()
	boardSeats := make([]board.Seat, 0, len(seats))
	for _, id := range seats {
		m, ok := members[id]
		if !ok {
			return nil, apperr.New(apperr.UnknownPlayer, "turn order names %s who is not a member", id)
		}
		boardSeats = append(boardSeats, board.Seat{PlayerID: id, Name: m.Name})
	}
	brd, err := board.New(boardSeats, cfg.Catalog, cfg.Rand, cfg.Board)
	if err != nil {
		return nil, err
	}

	log := deps.Log.Named("session").With(zap.String("room_id", cfg.RoomID))
	return &Session{
		id:         cfg.RoomID,
		members:    members,
		seats:      seats,
		board:      brd,
		machine:    turn.NewMachine(cfg.Order),
		soulsToWin: cfg.SoulsToWin,
		mailbox:    make(chan Command, cfg.MailboxSize),
		start:      make(chan struct{}),
		done:       make(chan struct{}),
		registry:   deps.Registry,
		bc:         NewBroadcaster(deps.Out, log),
		onFinish:   deps.OnFinish,
		log:        log,
	}, nil
}

func (s *Session) ID() string { return s.id }

// Order is the seating fixed at construction.
func (s *Session) Order() turn.Order { return s.machine.Order() }

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Start releases Run to broadcast the opening state and process commands.
func (s *Session) Start() {
	s.startOnce.Do(func() { close(s.start) })
}

// Stop shuts the session down and releases its registry entry. Queued
// commands are dropped.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.state.CompareAndSwap(int32(Waiting), int32(Stopped))
		s.state.CompareAndSwap(int32(Running), int32(Stopped))
		if s.registry != nil {
			s.registry.remove(s.id, s)
		}
		close(s.done)
	})
}

// Enqueue hands cmd to the session. It waits only for room in this
// session's mailbox, bounded by ctx.
func (s *Session) Enqueue(ctx context.Context, cmd Command) error {
	if s.stopped() {
		return apperr.New(apperr.SessionNotFound, "session %s has ended", s.id)
	}
	select {
	case s.mailbox <- cmd:
		return nil
	case <-s.done:
		return apperr.New(apperr.SessionNotFound, "session %s has ended", s.id)
	case <-ctx.Done():
		return apperr.Wrap(apperr.SessionBusy, ctx.Err(), "game is busy, try again")
	}
}

func (s *Session) Run() {
	s.log.Info("session waiting for start signal", zap.Strings("turn_order", s.seats))
	select {
	case <-s.start:
	case <-s.done:
		return
	}
	s.state.CompareAndSwap(int32(Waiting), int32(Running))
	s.log.Info("session started")
	defer s.log.Info("session stopped", zap.Stringer("state", s.State()))

	s.bc.State(s.memberList(), s.board, s.machine)

	for {
		select {
		case cmd := <-s.mailbox:
			s.process(cmd)
			if s.stopped() {
				return
			}
		case <-s.done:
			return
		}
	}
}

// Outcome is the result of applying one command.
type Outcome struct {
	Rejection    error
	Transition   *turn.Transition
	Drew         string
	Played       *card.Instance
	Disconnected string
	Winner       string
}

func (s *Session) process(cmd Command) {
	out := s.handle(cmd)
	if out.Rejection != nil {
		s.log.Debug("command rejected", zap.String("player_id", cmd.PlayerID), zap.Error(out.Rejection))
		if m, ok := s.members[cmd.PlayerID]; ok {
			s.bc.Error(*m, out.Rejection)
		}
		return
	}
	s.emit(out)
	if out.Winner != "" {
		s.finish(out.Winner)
	}
}

// handle applies cmd to the game state. Rejections leave it untouched.
func (s *Session) handle(cmd Command) Outcome {
	if _, ok := s.members[cmd.PlayerID]; !ok {
		return Outcome{Rejection: apperr.New(apperr.UnknownPlayer, "player %s is not in this game", cmd.PlayerID)}
	}

	var out Outcome
	switch cmd.Kind {
	case CmdTurnPass:
		tr, err := s.machine.Pass(cmd.PlayerID)
		if err != nil {
			return Outcome{Rejection: err}
		}
		out.Transition = &tr
		if tr.To == turn.Loot {
			c, err := s.board.Draw(tr.Player)
			if err != nil {
				s.log.Error("loot draw", zap.String("player_id", tr.Player), zap.Error(err))
			} else if c != nil {
				out.Drew = tr.Player
			}
		}

	case CmdPlayLoot:
		if err := s.machine.Require(cmd.PlayerID, turn.Action); err != nil {
			return Outcome{Rejection: err}
		}
		c, err := s.board.Play(cmd.PlayerID, cmd.CardID)
		if err != nil {
			return Outcome{Rejection: err}
		}
		out.Played = c

	case CmdDisconnect:
		if err := s.board.SetConnected(cmd.PlayerID, false); err != nil {
			return Outcome{Rejection: err}
		}
		s.members[cmd.PlayerID].ConnID = ""
		out.Disconnected = cmd.PlayerID

	default:
		return Outcome{Rejection: apperr.New(apperr.UnknownMessage, "unsupported game command %d", cmd.Kind)}
	}

	if winner, ok := s.board.Winner(s.soulsToWin); ok {
		out.Winner = winner
	}
	return out
}

func (s *Session) emit(out Outcome) {
	members := s.memberList()
	if out.Disconnected != "" {
		s.bc.ToAll(members, protocol.TypePlayerDisconnected, protocol.PlayerDisconnected{PlayerID: out.Disconnected})
	}
	if tr := out.Transition; tr != nil {
		if tr.TurnChanged {
			s.bc.ToAll(members, protocol.TypeTurnChange, protocol.TurnChange{NextPlayerID: tr.Player, Turn: tr.Turn})
		}
		s.bc.ToAll(members, protocol.TypePhaseChange, protocol.PhaseChange{PlayerID: tr.Player, Phase: tr.To.String()})
	}
	if out.Drew != "" {
		s.bc.ToAll(members, protocol.TypeCardDrawn, protocol.CardDrawn{PlayerID: out.Drew})
	}
	s.bc.State(members, s.board, s.machine)
}

func (s *Session) finish(winner string) {
	s.log.Info("game won", zap.String("winner_id", winner))
	s.state.Store(int32(Finished))
	s.bc.ToAll(s.memberList(), protocol.TypeGameEnded, protocol.GameEnded{WinnerID: winner})
	s.Stop()
	s.onFinish(s.id, winner)
}

// memberList returns members in seating order.
func (s *Session) memberList() []Member {
	out := make([]Member, 0, len(s.seats))
	for _, id := range s.seats {
		out = append(out, *s.members[id])
	}
	return out
}
