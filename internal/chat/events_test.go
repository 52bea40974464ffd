package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseJoinRoomAcceptsBareString(t *testing.T) {
	p, err := ParseJoinRoom(json.RawMessage(`"room-42"`))
	require.NoError(t, err)
	require.Equal(t, "room-42", p.RoomID)
	require.Empty(t, p.Username)
}

func TestParseJoinRoomAcceptsObject(t *testing.T) {
	p, err := ParseJoinRoom(json.RawMessage(`{"roomId":"room-42","username":"mina"}`))
	require.NoError(t, err)
	require.Equal(t, "room-42", p.RoomID)
	require.Equal(t, "mina", p.Username)
}

func TestParseJoinRoomRejectsEmpty(t *testing.T) {
	for _, raw := range []string{`""`, `{}`, `{"username":"x"}`, `123`} {
		_, err := ParseJoinRoom(json.RawMessage(raw))
		require.Error(t, err, "raw=%s", raw)
	}
}

func TestParseDMIDNumberAndString(t *testing.T) {
	id, err := ParseDMID(json.RawMessage(`7`))
	require.NoError(t, err)
	require.Equal(t, int64(7), id)

	id, err = ParseDMID(json.RawMessage(`"7"`))
	require.NoError(t, err)
	require.Equal(t, int64(7), id)
}

func TestParseDMIDRejectsInvalid(t *testing.T) {
	for _, raw := range []string{`0`, `-3`, `"abc"`, `""`, `null`} {
		_, err := ParseDMID(json.RawMessage(raw))
		require.Error(t, err, "raw=%s", raw)
	}
}

func TestParseSendDM(t *testing.T) {
	p, err := ParseSendDM(json.RawMessage(`{"dmId":"12","message":" hello "}`))
	require.NoError(t, err)
	require.Equal(t, int64(12), p.DMID)
	require.Equal(t, "hello", p.Message)

	_, err = ParseSendDM(json.RawMessage(`{"dmId":12,"message":"   "}`))
	require.Error(t, err)
}

func TestParseSendMessageRequiresRoomAndText(t *testing.T) {
	p, err := ParseSendMessage(json.RawMessage(`{"roomId":"r1","message":"hi","username":"mina"}`))
	require.NoError(t, err)
	require.Equal(t, "r1", p.RoomID)
	require.Equal(t, "mina", p.Username)

	_, err = ParseSendMessage(json.RawMessage(`{"roomId":"","message":"hi"}`))
	require.Error(t, err)
	_, err = ParseSendMessage(json.RawMessage(`{"roomId":"r1","message":""}`))
	require.Error(t, err)
}

func TestDMRoomKey(t *testing.T) {
	require.Equal(t, "dm_7", DMRoomKey(7))
}

func TestEncodeEnvelopeRoundTrip(t *testing.T) {
	raw, err := EncodeEnvelope(EventRoomInfo, RoomInfoPayload{ID: "r1", Name: "general"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.Equal(t, EventRoomInfo, env.Event)

	var info RoomInfoPayload
	require.NoError(t, json.Unmarshal(env.Data, &info))
	require.Equal(t, "general", info.Name)
}
