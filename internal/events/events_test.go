package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "souls.room.created", Subject("souls", RoomCreated))
	assert.Equal(t, "prod.game.ended", Subject("prod", GameEnded))
}

func TestConnectNATSFailsWithoutServer(t *testing.T) {
	_, err := ConnectNATS("nats://127.0.0.1:1", "test", "souls", nil)
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	require.NoError(t, r.Publish(context.Background(), Event{Kind: RoomCreated, RoomID: "r"}))
	require.NoError(t, r.Publish(context.Background(), Event{Kind: GameStarted, RoomID: "r"}))
	assert.Equal(t, []Kind{RoomCreated, GameStarted}, r.Kinds())
	assert.Len(t, r.Events(), 2)

	assert.NoError(t, Nop{}.Publish(context.Background(), Event{}))
}
