package router

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"souls/internal/apperr"
	"souls/internal/game/board"
	"souls/internal/game/card"
	"souls/internal/game/turn"
	"souls/internal/lobby"
	"souls/internal/network"
	"souls/internal/network/networktest"
	"souls/internal/protocol"
	"souls/internal/reliable"
	"souls/internal/session"
)

const soulCatalog = `[
  {"id":"soul","name":"Soul Heart","card_type":"Loot","count":24,"effect":{"souls":1}}
]`

type harness struct {
	t     *testing.T
	conns *network.Manager
	lobby *lobby.Manager
	reg   *session.Registry
}

func newHarness(t *testing.T, catalog *card.Catalog, cfg lobby.Config) *harness {
	t.Helper()
	opts := network.DefaultOptions()
	opts.Policy = reliable.Policy{AckTimeout: time.Second, MaxAttempts: 3, BackoffFactor: 2, MaxBackoff: 4 * time.Second}
	conns := network.NewManager(protocol.JSONCodec{}, opts, nil)
	reg := session.NewRegistry()
	lm := lobby.NewManager(cfg, lobby.Deps{
		Registry: reg,
		Catalog:  catalog,
		Out:      conns,
		Rand:     rand.New(rand.NewPCG(3, 9)),
	})
	conns.SetHandler(New(conns, lm, reg, time.Second, nil))
	t.Cleanup(conns.CloseAll)
	t.Cleanup(func() {
		for _, r := range lm.Rooms() {
			_, _ = lm.DestroyRoom(r.ID)
		}
	})
	return &harness{t: t, conns: conns, lobby: lm, reg: reg}
}

func defaultHarness(t *testing.T) *harness {
	c, err := card.Default()
	require.NoError(t, err)
	return newHarness(t, c, lobby.DefaultConfig())
}

func (h *harness) connect() *networktest.Client {
	h.t.Helper()
	cl := networktest.NewClient(h.t)
	go h.conns.Serve(cl.Pipe)
	var hello protocol.ConnectionID
	cl.Expect(protocol.TypeConnectionID, &hello)
	require.NotEmpty(h.t, hello.ConnectionID)
	return cl
}

// room creates a room for two connected players and returns
// them with their player ids.
func (h *harness) room() (roomID string, a, b *networktest.Client, aID, bID string) {
	h.t.Helper()
	a, b = h.connect(), h.connect()

	a.Send(protocol.TypeCreateRoom, protocol.CreateRoom{RoomName: "table", FirstPlayerName: "Alice"})
	var created protocol.RoomCreated
	a.Expect(protocol.TypeRoomCreated, &created)

	b.Send(protocol.TypeJoinRoom, protocol.JoinRoom{RoomID: created.RoomID, PlayerName: "Bob"})
	var joined protocol.PlayerJoined
	b.Expect(protocol.TypePlayerJoined, &joined)
	a.Expect(protocol.TypePlayerJoined, nil)
	return created.RoomID, a, b, created.PlayerID, joined.PlayerID
}

// start readies both players and returns the clients keyed by player id
// along with the announced turn order.
func (h *harness) start() (map[string]*networktest.Client, []string) {
	h.t.Helper()
	_, a, b, aID, bID := h.room()
	a.Send(protocol.TypePlayerReady, nil)
	b.Send(protocol.TypePlayerReady, nil)

	var startA, startB protocol.RoomGameStart
	a.Expect(protocol.TypeRoomGameStart, &startA)
	b.Expect(protocol.TypeRoomGameStart, &startB)
	require.Equal(h.t, startA.TurnOrder, startB.TurnOrder)
	require.ElementsMatch(h.t, []string{aID, bID}, startA.TurnOrder)
	return map[string]*networktest.Client{aID: a, bID: b}, startA.TurnOrder
}

func TestLobbyFlowStartsGame(t *testing.T) {
	h := defaultHarness(t)
	_, a, b, aID, _ := h.room()

	a.Send(protocol.TypeChat, protocol.Chat{Message: "gl hf"})
	var chat protocol.ChatMessage
	b.Expect(protocol.TypeChatMessage, &chat)
	assert.Equal(t, "Alice", chat.PlayerName)
	assert.Equal(t, "gl hf", chat.Message)

	a.Send(protocol.TypePlayerReady, nil)
	var ready protocol.PlayersReady
	b.Expect(protocol.TypePlayersReady, &ready)
	assert.Equal(t, []string{aID}, ready.PlayersReady)

	b.Send(protocol.TypePlayerReady, nil)
	for _, cl := range []*networktest.Client{a, b} {
		cl.Expect(protocol.TypeRoomGameStart, nil)
		cl.Expect(protocol.TypePublicBoardState, nil)
		var priv board.PrivateState
		cl.Expect(protocol.TypePrivateBoardState, &priv)
		assert.Len(t, priv.Hand, board.DefaultSettings().HandSize)
	}
	assert.Equal(t, 1, h.reg.Len())
}

func TestGameMessagesOutsideAGame(t *testing.T) {
	h := defaultHarness(t)
	loner := h.connect()

	loner.Send(protocol.TypeTurnPass, nil)
	assert.Equal(t, string(apperr.NotInRoom), loner.ExpectError().ErrorType)

	_, a, _, _, _ := h.room()
	a.Send(protocol.TypeTurnPass, nil)
	assert.Equal(t, string(apperr.GameNotStarted), a.ExpectError().ErrorType)
}

func TestRejectedGameMessageIsAcceptedAfterStart(t *testing.T) {
	h := defaultHarness(t)
	_, a, b, aID, bID := h.room()
	clients := map[string]*networktest.Client{aID: a, bID: b}

	intent := protocol.Envelope{Type: protocol.TypeTurnPass, Token: "intent-1"}
	for _, cl := range clients {
		cl.SendEnvelope(intent)
		assert.Equal(t, string(apperr.GameNotStarted), cl.ExpectError().ErrorType)
	}

	a.Send(protocol.TypePlayerReady, nil)
	b.Send(protocol.TypePlayerReady, nil)
	var start protocol.RoomGameStart
	a.Expect(protocol.TypeRoomGameStart, &start)
	b.Expect(protocol.TypeRoomGameStart, nil)
	active, waiting := clients[start.TurnOrder[0]], clients[start.TurnOrder[1]]

	active.SendEnvelope(intent)
	var phase protocol.PhaseChange
	waiting.Expect(protocol.TypePhaseChange, &phase)
	assert.Equal(t, start.TurnOrder[0], phase.PlayerID)

	waiting.SendEnvelope(intent)
	assert.Equal(t, string(apperr.NotYourTurn), waiting.ExpectError().ErrorType)
}

func TestRejectedLobbyRequests(t *testing.T) {
	h := defaultHarness(t)
	_, a, _, _, _ := h.room()

	tests := []struct {
		name string
		typ  protocol.Type
		body any
		want apperr.Kind
	}{
		{"already in a room", protocol.TypeCreateRoom, protocol.CreateRoom{RoomName: "other", FirstPlayerName: "Alice"}, apperr.PlayerAlreadyInRoom},
		{"bad player name", protocol.TypeJoinRoom, protocol.JoinRoom{RoomID: "x", PlayerName: "no spaces"}, apperr.InvalidPayload},
		{"empty chat", protocol.TypeChat, protocol.Chat{}, apperr.InvalidPayload},
		{"unknown type", protocol.Type("Teleport"), nil, apperr.UnknownMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a.Send(tt.typ, tt.body)
			assert.Equal(t, string(tt.want), a.ExpectError().ErrorType)
		})
	}

	loner := h.connect()
	loner.Send(protocol.TypeJoinRoom, protocol.JoinRoom{RoomID: "missing", PlayerName: "Carol"})
	assert.Equal(t, string(apperr.RoomNotFound), loner.ExpectError().ErrorType)
	loner.Send(protocol.TypeLeaveRoom, nil)
	assert.Equal(t, string(apperr.NotInRoom), loner.ExpectError().ErrorType)

	loner.Send(protocol.TypePing, nil)
	loner.Expect(protocol.TypePong, nil)
}

func TestTurnRulesAreEnforced(t *testing.T) {
	h := defaultHarness(t)
	clients, order := h.start()
	active, waiting := clients[order[0]], clients[order[1]]

	waiting.Send(protocol.TypeTurnPass, nil)
	assert.Equal(t, string(apperr.NotYourTurn), waiting.ExpectError().ErrorType)

	var priv board.PrivateState
	active.Expect(protocol.TypePrivateBoardState, &priv)
	require.NotEmpty(t, priv.Hand)
	active.Send(protocol.TypePlayLoot, protocol.PlayLoot{CardID: priv.Hand[0].ID})
	assert.Equal(t, string(apperr.InvalidPhase), active.ExpectError().ErrorType)

	active.Send(protocol.TypeTurnPass, nil)
	var phase protocol.PhaseChange
	waiting.Expect(protocol.TypePhaseChange, &phase)
	assert.Equal(t, order[0], phase.PlayerID)
	assert.Equal(t, "Loot", phase.Phase)
	var drawn protocol.CardDrawn
	waiting.Expect(protocol.TypeCardDrawn, &drawn)
	assert.Equal(t, order[0], drawn.PlayerID)
}

func TestFullTurnRotationReachesNextPlayer(t *testing.T) {
	h := defaultHarness(t)
	clients, order := h.start()
	active, waiting := clients[order[0]], clients[order[1]]

	for range turn.Phases {
		active.Send(protocol.TypeTurnPass, nil)
		waiting.Expect(protocol.TypePhaseChange, nil)
	}
	var tc protocol.TurnChange
	active.Expect(protocol.TypeTurnChange, &tc)
	assert.Equal(t, order[1], tc.NextPlayerID)
	assert.Equal(t, 2, tc.Turn)
}

func TestWinnerEndsGameAndReleasesRoom(t *testing.T) {
	c, err := card.Parse([]byte(soulCatalog))
	require.NoError(t, err)
	cfg := lobby.DefaultConfig()
	cfg.SoulsToWin = 1
	h := newHarness(t, c, cfg)

	clients, order := h.start()
	winner, loser := clients[order[0]], clients[order[1]]

	var priv board.PrivateState
	winner.Expect(protocol.TypePrivateBoardState, &priv)
	require.NotEmpty(t, priv.Hand)

	winner.Send(protocol.TypeTurnPass, nil)
	winner.Send(protocol.TypeTurnPass, nil)
	var phase protocol.PhaseChange
	for phase.Phase != "Action" {
		loser.Expect(protocol.TypePhaseChange, &phase)
	}
	winner.Send(protocol.TypePlayLoot, protocol.PlayLoot{CardID: priv.Hand[0].ID})

	for _, cl := range []*networktest.Client{winner, loser} {
		var ended protocol.GameEnded
		cl.Expect(protocol.TypeGameEnded, &ended)
		assert.Equal(t, order[0], ended.WinnerID)
	}

	require.Eventually(t, func() bool {
		_, err := h.reg.Lookup(h.roomOf(t))
		st, _ := h.lobby.RoomState(h.roomOf(t))
		return apperr.Is(err, apperr.SessionNotFound) && st == lobby.StateFinished
	}, time.Second, 5*time.Millisecond)

	loser.Send(protocol.TypeTurnPass, nil)
	assert.Equal(t, string(apperr.SessionNotFound), loser.ExpectError().ErrorType)

	loser.Send(protocol.TypeCreateRoom, protocol.CreateRoom{RoomName: "rematch", FirstPlayerName: "Bob"})
	loser.Expect(protocol.TypeRoomCreated, nil)
}

func (h *harness) roomOf(t *testing.T) string {
	for _, r := range h.lobby.Rooms() {
		if r.Name == "table" {
			return r.ID
		}
	}
	t.Fatal("room not found")
	return ""
}

func TestDisconnectInLobbyNotifiesRoom(t *testing.T) {
	h := defaultHarness(t)
	roomID, a, b, _, bID := h.room()

	b.Pipe.Close()

	var left protocol.PlayerLeft
	a.Expect(protocol.TypePlayerLeft, &left)
	assert.Equal(t, bID, left.PlayerID)
	assert.Equal(t, "Bob", left.PlayerName)

	members, err := h.lobby.Members(roomID)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestDisconnectInGameNotifiesOpponent(t *testing.T) {
	h := defaultHarness(t)
	clients, order := h.start()

	clients[order[1]].Pipe.Close()

	var dc protocol.PlayerDisconnected
	clients[order[0]].Expect(protocol.TypePlayerDisconnected, &dc)
	assert.Equal(t, order[1], dc.PlayerID)

	clients[order[0]].Send(protocol.TypeTurnPass, nil)
	clients[order[0]].Expect(protocol.TypePhaseChange, nil)
}

func TestDestroyRoomDetachesMembers(t *testing.T) {
	h := defaultHarness(t)
	roomID, a, b, _, _ := h.room()

	a.Send(protocol.TypeDestroyRoom, nil)
	for _, cl := range []*networktest.Client{a, b} {
		var gone protocol.RoomDestroyed
		cl.Expect(protocol.TypeRoomDestroyed, &gone)
		assert.Equal(t, roomID, gone.RoomID)
	}

	b.Send(protocol.TypeChat, protocol.Chat{Message: "hello?"})
	assert.Equal(t, string(apperr.NotInRoom), b.ExpectError().ErrorType)

	_, ok := h.lobby.RoomState(roomID)
	assert.False(t, ok)
}

func TestLeavingUnreadyPlayerStartsGame(t *testing.T) {
	h := defaultHarness(t)
	roomID, a, b, aID, bID := h.room()
	c := h.connect()
	c.Send(protocol.TypeJoinRoom, protocol.JoinRoom{RoomID: roomID, PlayerName: "Carol"})
	c.Expect(protocol.TypePlayerJoined, nil)

	a.Send(protocol.TypePlayerReady, nil)
	b.Send(protocol.TypePlayerReady, nil)
	var ready protocol.PlayersReady
	for len(ready.PlayersReady) < 2 {
		a.Expect(protocol.TypePlayersReady, &ready)
	}

	c.Send(protocol.TypeLeaveRoom, nil)
	for _, cl := range []*networktest.Client{a, b} {
		var start protocol.RoomGameStart
		cl.Expect(protocol.TypeRoomGameStart, &start)
		assert.ElementsMatch(t, []string{aID, bID}, start.TurnOrder)
		cl.Expect(protocol.TypePrivateBoardState, nil)
	}
	state, _ := h.lobby.RoomState(roomID)
	assert.Equal(t, lobby.StateInGame, state)
}

func TestLeaveRoomLetsPlayerJoinAnother(t *testing.T) {
	h := defaultHarness(t)
	_, a, b, _, bID := h.room()

	b.Send(protocol.TypeLeaveRoom, nil)
	var left protocol.PlayerLeft
	b.Expect(protocol.TypePlayerLeft, &left)
	assert.Equal(t, bID, left.PlayerID)
	a.Expect(protocol.TypePlayerLeft, nil)

	b.Send(protocol.TypeCreateRoom, protocol.CreateRoom{RoomName: "solo", FirstPlayerName: "Bob"})
	b.Expect(protocol.TypeRoomCreated, nil)
}
