// Package lobby owns rooms from creation until their game starts. All room
// operations run under one mutex; they are rare next to game traffic.
package lobby

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"souls/internal/apperr"
	"souls/internal/events"
	"souls/internal/game/board"
	"souls/internal/game/card"
	"souls/internal/game/turn"
	"souls/internal/session"
)

type Config struct {
	MinPlayers  int
	MaxPlayers  int
	SoulsToWin  int
	MailboxSize int
	Board       board.Settings
	IdleTTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinPlayers:  2,
		MaxPlayers:  4,
		SoulsToWin:  4,
		MailboxSize: 32,
		Board:       board.DefaultSettings(),
		IdleTTL:     10 * time.Minute,
	}
}

type Deps struct {
	Registry *session.Registry
	Catalog  *card.Catalog
	Out      session.Sender
	Events   events.Publisher
	Rand     *rand.Rand
	Log      *zap.Logger
}

type Manager struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	players map[string]string

	registry *session.Registry
	catalog  *card.Catalog
	out      session.Sender
	events   events.Publisher
	rng      *rand.Rand
	cfg      Config
	now      func() time.Time
	log      *zap.Logger
}

func NewManager(cfg Config, deps Deps) *Manager {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 1))
	}
	return &Manager{
		rooms:    make(map[string]*Room),
		players:  make(map[string]string),
		registry: deps.Registry,
		catalog:  deps.Catalog,
		out:      deps.Out,
		events:   deps.Events,
		rng:      deps.Rand,
		cfg:      cfg,
		now:      time.Now,
		log:      deps.Log.Named("lobby"),
	}
}

func (m *Manager) publish(ev events.Event) {
	ev.At = m.now()
	if err := m.events.Publish(context.Background(), ev); err != nil {
		m.log.Warn("publish event", zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}

// CreateRoom opens a room with its creator as the first member.
func (m *Manager) CreateRoom(connID, name, playerName string) (roomID, playerID string, err error) {
	m.mu.Lock()
	now := m.now()
	room := &Room{
		id:        uuid.NewString(),
		name:      name,
		ready:     make(map[string]bool),
		state:     StateLobby,
		createdAt: now,
		touchedAt: now,
	}
	p := &member{playerID: uuid.NewString(), name: playerName, connID: connID, connected: true}
	room.members = append(room.members, p)
	m.rooms[room.id] = room
	m.players[p.playerID] = room.id
	m.mu.Unlock()

	m.log.Info("room created", zap.String("room_id", room.id), zap.String("name", name), zap.String("player_id", p.playerID))
	m.publish(events.Event{Kind: events.RoomCreated, RoomID: room.id, RoomName: name, PlayerIDs: []string{p.playerID}})
	return room.id, p.playerID, nil
}

type JoinResult struct {
	PlayerID string
	Members  []session.Member
}

// JoinRoom adds a member to a room still in the lobby.
func (m *Manager) JoinRoom(connID, roomID, playerName string) (JoinResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return JoinResult{}, apperr.New(apperr.RoomNotFound, "room %s does not exist", roomID)
	}
	if room.state != StateLobby {
		return JoinResult{}, apperr.New(apperr.InvalidState, "room %s is %s", roomID, room.state)
	}
	if len(room.members) >= m.cfg.MaxPlayers {
		return JoinResult{}, apperr.New(apperr.RoomFull, "room %s is full", roomID)
	}

	p := &member{playerID: uuid.NewString(), name: playerName, connID: connID, connected: true}
	room.members = append(room.members, p)
	room.touchedAt = m.now()
	m.players[p.playerID] = roomID

	m.log.Info("player joined", zap.String("room_id", roomID), zap.String("player_id", p.playerID))
	return JoinResult{PlayerID: p.playerID, Members: room.sessionMembers()}, nil
}

type LeaveResult struct {
	RoomID      string
	Player      session.Member
	Remaining   []session.Member
	Ready       []string
	RoomDeleted bool
	// Session is set when the remaining members were all ready, so the
	// departure started the game. The caller announces it and calls Start.
	Session *session.Session
}

// LeaveRoom removes a member. A room whose last member leaves is deleted.
func (m *Manager) LeaveRoom(playerID string) (LeaveResult, error) {
	m.mu.Lock()
	room, err := m.roomOf(playerID)
	if err != nil {
		m.mu.Unlock()
		return LeaveResult{}, err
	}
	if room.state == StateInGame || room.state == StateStarting {
		m.mu.Unlock()
		return LeaveResult{}, apperr.New(apperr.InvalidState, "cannot leave a game in progress")
	}
	res := m.leaveLocked(room, playerID, true)
	m.mu.Unlock()

	m.publishStart(room, res.Session)
	return res, nil
}

func (m *Manager) leaveLocked(room *Room, playerID string, deleteEmpty bool) LeaveResult {
	p := room.remove(playerID)
	delete(m.players, playerID)
	room.touchedAt = m.now()

	res := LeaveResult{
		RoomID:    room.id,
		Player:    session.Member{PlayerID: p.playerID, Name: p.name, ConnID: p.connID},
		Remaining: room.sessionMembers(),
		Ready:     room.readyList(),
	}
	if deleteEmpty && len(room.members) == 0 {
		delete(m.rooms, room.id)
		res.RoomDeleted = true
		m.log.Info("room deleted, last player left", zap.String("room_id", room.id))
		return res
	}
	res.Session = m.startIfReadyLocked(room)
	return res
}

// startIfReadyLocked starts the game of a lobby room whose members are
// enough and all ready. It returns nil when the room keeps waiting.
func (m *Manager) startIfReadyLocked(room *Room) *session.Session {
	if room.state != StateLobby || len(room.members) < m.cfg.MinPlayers || !room.allReady() {
		return nil
	}
	sess, err := m.startLocked(room)
	if err != nil {
		m.log.Warn("game not started after departure", zap.String("room_id", room.id), zap.Error(err))
		return nil
	}
	return sess
}

func (m *Manager) publishStart(room *Room, sess *session.Session) {
	if sess == nil {
		return
	}
	m.publish(events.Event{Kind: events.GameStarted, RoomID: room.id, RoomName: room.name, PlayerIDs: sess.Order().IDs()})
}

type ReadyResult struct {
	RoomID  string
	Ready   []string
	Members []session.Member
	// Session is set when this call started the game. The caller announces
	// the start and then calls Session.Start.
	Session *session.Session
}

// SetReady marks a member ready. The call that makes every member of a
// room with enough players ready starts the game.
func (m *Manager) SetReady(playerID string) (ReadyResult, error) {
	m.mu.Lock()
	room, err := m.roomOf(playerID)
	if err != nil {
		m.mu.Unlock()
		return ReadyResult{}, err
	}
	if room.state != StateLobby {
		m.mu.Unlock()
		return ReadyResult{}, apperr.New(apperr.InvalidState, "room %s is %s", room.id, room.state)
	}

	room.ready[playerID] = true
	room.touchedAt = m.now()
	res := ReadyResult{RoomID: room.id, Ready: room.readyList(), Members: room.sessionMembers()}

	if len(room.members) < m.cfg.MinPlayers || !room.allReady() {
		m.mu.Unlock()
		return res, nil
	}

	sess, err := m.startLocked(room)
	if err != nil {
		m.mu.Unlock()
		return ReadyResult{}, err
	}
	res.Session = sess
	m.mu.Unlock()

	m.publishStart(room, sess)
	return res, nil
}

func (m *Manager) startLocked(room *Room) (*session.Session, error) {
	room.state = StateStarting

	ids := make([]string, 0, len(room.members))
	for _, p := range room.members {
		ids = append(ids, p.playerID)
	}
	order := turn.NewOrder(ids, m.rng)

	sess, err := session.New(session.Config{
		RoomID:      room.id,
		Members:     room.sessionMembers(),
		Order:       order,
		Catalog:     m.catalog,
		Rand:        rand.New(rand.NewPCG(m.rng.Uint64(), m.rng.Uint64())),
		Board:       m.cfg.Board,
		SoulsToWin:  m.cfg.SoulsToWin,
		MailboxSize: m.cfg.MailboxSize,
	}, session.Deps{
		Registry: m.registry,
		Out:      m.out,
		OnFinish: m.MarkFinished,
		Log:      m.log,
	})
	if err != nil {
		room.state = StateLobby
		return nil, apperr.Wrap(apperr.Internal, err, "could not start game")
	}
	if err := m.registry.Register(room.id, sess); err != nil {
		room.state = StateLobby
		m.log.Error("session already registered for room", zap.String("room_id", room.id), zap.Error(err))
		return nil, err
	}
	go sess.Run()

	room.state = StateInGame
	room.session = sess
	m.log.Info("game started", zap.String("room_id", room.id), zap.Strings("turn_order", order.IDs()))
	return sess, nil
}

// DestroyRoom removes a room in any state and stops its session.
func (m *Manager) DestroyRoom(roomID string) ([]session.Member, error) {
	m.mu.Lock()
	room, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return nil, apperr.New(apperr.RoomNotFound, "room %s does not exist", roomID)
	}
	members := m.dropLocked(room)
	m.mu.Unlock()

	m.log.Info("room destroyed", zap.String("room_id", roomID))
	m.publish(events.Event{Kind: events.RoomDestroyed, RoomID: roomID, RoomName: room.name})
	return members, nil
}

func (m *Manager) dropLocked(room *Room) []session.Member {
	members := room.sessionMembers()
	for _, p := range room.members {
		delete(m.players, p.playerID)
	}
	delete(m.rooms, room.id)
	if room.session != nil {
		room.session.Stop()
		room.session = nil
	}
	return members
}

type DisconnectResult struct {
	RoomID    string
	State     State
	Player    session.Member
	Remaining []session.Member
	Ready     []string
	// Session is the running game for StateInGame. For StateLobby it is set
	// only when the departure started the game, as in LeaveResult.
	Session *session.Session
}

// Disconnect handles a member whose connection is gone. In the lobby the
// member is removed but the room is kept; in a game the member is marked
// disconnected and the session is returned so the caller can notify it.
func (m *Manager) Disconnect(playerID string) (DisconnectResult, error) {
	m.mu.Lock()
	room, err := m.roomOf(playerID)
	if err != nil {
		m.mu.Unlock()
		return DisconnectResult{}, err
	}
	res := DisconnectResult{RoomID: room.id, State: room.state}
	var started *session.Session

	switch room.state {
	case StateLobby, StateFinished:
		lr := m.leaveLocked(room, playerID, false)
		res.Player, res.Remaining, res.Ready = lr.Player, lr.Remaining, lr.Ready
		res.Session, started = lr.Session, lr.Session
	default:
		_, p := room.find(playerID)
		p.connected = false
		room.touchedAt = m.now()
		res.Player = session.Member{PlayerID: p.playerID, Name: p.name}
		res.Remaining = room.sessionMembers()
		res.Session = room.session
	}
	m.mu.Unlock()

	m.publishStart(room, started)
	return res, nil
}

// MarkFinished records the end of a room's game. Sessions call it once
// they have released their registry entry.
func (m *Manager) MarkFinished(roomID, winnerID string) {
	m.mu.Lock()
	room, ok := m.rooms[roomID]
	if ok {
		room.state = StateFinished
		room.session = nil
		room.winner = winnerID
		room.touchedAt = m.now()
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.log.Info("game finished", zap.String("room_id", roomID), zap.String("winner_id", winnerID))
	m.publish(events.Event{Kind: events.GameEnded, RoomID: roomID, WinnerID: winnerID})
}

// Members returns a room's members in join order.
func (m *Manager) Members(roomID string) ([]session.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, apperr.New(apperr.RoomNotFound, "room %s does not exist", roomID)
	}
	return room.sessionMembers(), nil
}

func (m *Manager) Member(playerID string) (session.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, err := m.roomOf(playerID)
	if err != nil {
		return session.Member{}, err
	}
	_, p := room.find(playerID)
	return session.Member{PlayerID: p.playerID, Name: p.name, ConnID: p.connID}, nil
}

func (m *Manager) RoomState(roomID string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return "", false
	}
	return room.state, true
}

func (m *Manager) Room(roomID string) (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return Summary{}, apperr.New(apperr.RoomNotFound, "room %s does not exist", roomID)
	}
	return room.summary(), nil
}

// Rooms lists every room, oldest first.
func (m *Manager) Rooms() []Summary {
	m.mu.Lock()
	out := make([]Summary, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r.summary())
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Counts returns the number of rooms per state.
func (m *Manager) Counts() map[State]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[State]int{StateLobby: 0, StateStarting: 0, StateInGame: 0, StateFinished: 0}
	for _, r := range m.rooms {
		out[r.state]++
	}
	return out
}

func (m *Manager) roomOf(playerID string) (*Room, error) {
	roomID, ok := m.players[playerID]
	if !ok {
		return nil, apperr.New(apperr.PlayerNotFound, "player %s is not in a room", playerID)
	}
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, apperr.New(apperr.RoomNotFound, "room %s does not exist", roomID)
	}
	return room, nil
}
