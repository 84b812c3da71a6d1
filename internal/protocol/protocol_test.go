package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"souls/internal/apperr"
)

func TestEveryClientTypeIsClassified(t *testing.T) {
	for _, typ := range ClientTypes() {
		c, err := Classify(typ)
		require.NoError(t, err, typ)
		assert.Contains(t, []Category{Lobby, Game}, c, typ)
	}
	assert.Len(t, categories, len(ClientTypes()))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		typ  Type
		want Category
	}{
		{TypeCreateRoom, Lobby},
		{TypeJoinRoom, Lobby},
		{TypeLeaveRoom, Lobby},
		{TypePlayerReady, Lobby},
		{TypeChat, Lobby},
		{TypeDestroyRoom, Lobby},
		{TypeTurnPass, Game},
		{TypePlayLoot, Game},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			got, err := Classify(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Classify("Teleport")
	assert.Equal(t, apperr.UnknownMessage, apperr.KindOf(err))
	_, err = Classify(TypeAck)
	assert.Error(t, err, "acks are consumed before routing")
}

func TestDecode(t *testing.T) {
	var c JSONCodec

	env, err := c.Decode([]byte(`{"type":"JoinRoom","token":"t-1","payload":{"player_name":"Bob","room_id":"r"}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeJoinRoom, env.Type)
	assert.Equal(t, "t-1", env.Token)

	_, err = c.Decode([]byte(`not json`))
	assert.Equal(t, apperr.MalformedMessage, apperr.KindOf(err))
	_, err = c.Decode([]byte(`{"payload":{}}`))
	assert.Equal(t, apperr.MalformedMessage, apperr.KindOf(err))
}

func TestDecodePayloadValidation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind apperr.Kind
	}{
		{"ok", `{"player_name":"Bob_1-x","room_id":"r"}`, ""},
		{"missing name", `{"room_id":"r"}`, apperr.InvalidPayload},
		{"bad chars", `{"player_name":"Bob Smith","room_id":"r"}`, apperr.InvalidPayload},
		{"too long", `{"player_name":"` + strings.Repeat("a", 51) + `","room_id":"r"}`, apperr.InvalidPayload},
		{"missing room", `{"player_name":"Bob"}`, apperr.InvalidPayload},
		{"wrong shape", `{"player_name":5}`, apperr.MalformedMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p JoinRoom
			err := DecodePayload([]byte(tt.raw), &p)
			if tt.kind == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestRoomNameLimit(t *testing.T) {
	var p CreateRoom
	err := DecodePayload([]byte(`{"room_name":"`+strings.Repeat("x", 101)+`","first_player_name":"Al"}`), &p)
	assert.Equal(t, apperr.InvalidPayload, apperr.KindOf(err))
	assert.Contains(t, apperr.Message(err), "at most 100")
}

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope(TypeTurnChange, TurnChange{NextPlayerID: "p2", Turn: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"next_player_id":"p2","turn":2}`, string(env.Payload))

	env, err = NewEnvelope(TypePong, nil)
	require.NoError(t, err)
	assert.Nil(t, env.Payload)
}
