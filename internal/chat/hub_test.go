package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// drainOne 从客户端出站队列取一条并解包
func drainOne(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case raw := <-c.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	default:
		t.Fatal("出站队列为空")
		return Envelope{}
	}
}

func TestHubRegisterUnregisterPresence(t *testing.T) {
	h := NewHub()
	c := newTestClient("conn-1", "u1")

	h.Register(c)
	require.True(t, h.Registry().IsOnline("u1"))

	h.Unregister(c)
	require.False(t, h.Registry().IsOnline("u1"))

	select {
	case <-c.Done():
	default:
		t.Fatal("注销后连接应处于关停状态")
	}
}

func TestHubUnregisterRemovesFromAllRooms(t *testing.T) {
	h := NewHub()
	c := newTestClient("conn-1", "u1")
	other := newTestClient("conn-2", "u2")
	h.Register(c)
	h.Register(other)
	h.JoinRoom(c, "room-a")
	h.JoinRoom(c, "room-b")
	h.JoinRoom(other, "room-a")

	h.Unregister(c)

	require.False(t, h.InRoom(c, "room-a"))
	require.False(t, h.InRoom(c, "room-b"))
	// 其他成员不受影响
	require.Equal(t, 1, h.BroadcastToRoom("room-a", EventReceiveMessage, ChatMessage{Message: "hi"}, nil))
}

func TestHubClientCanJoinMultipleRooms(t *testing.T) {
	h := NewHub()
	c := newTestClient("conn-1", "u1")
	h.Register(c)

	h.JoinRoom(c, "room-a")
	h.JoinRoom(c, "dm_7")

	require.True(t, h.InRoom(c, "room-a"))
	require.True(t, h.InRoom(c, "dm_7"))

	h.LeaveRoom(c, "room-a")
	require.False(t, h.InRoom(c, "room-a"))
	require.True(t, h.InRoom(c, "dm_7"))
}

func TestBroadcastToRoomExcludesSender(t *testing.T) {
	h := NewHub()
	sender := newTestClient("conn-1", "u1")
	peer := newTestClient("conn-2", "u2")
	outside := newTestClient("conn-3", "u3")
	for _, c := range []*Client{sender, peer, outside} {
		h.Register(c)
	}
	h.JoinRoom(sender, "room-a")
	h.JoinRoom(peer, "room-a")

	n := h.BroadcastToRoom("room-a", EventReceiveMessage, ChatMessage{Message: "hello"}, sender)
	require.Equal(t, 1, n)

	env := drainOne(t, peer)
	require.Equal(t, EventReceiveMessage, env.Event)

	require.Empty(t, sender.send)
	require.Empty(t, outside.send)
}

func TestBroadcastToRoomIncludesSenderWhenNoExcept(t *testing.T) {
	h := NewHub()
	a := newTestClient("conn-1", "u1")
	b := newTestClient("conn-2", "u2")
	h.Register(a)
	h.Register(b)
	h.JoinRoom(a, "dm_1")
	h.JoinRoom(b, "dm_1")

	n := h.BroadcastToRoom("dm_1", EventReceiveDM, DMMessagePayload{Message: "hey"}, nil)
	require.Equal(t, 2, n)
	require.Equal(t, EventReceiveDM, drainOne(t, a).Event)
	require.Equal(t, EventReceiveDM, drainOne(t, b).Event)
}

func TestSendToUserReachesEveryConnection(t *testing.T) {
	h := NewHub()
	c1 := newTestClient("conn-1", "u1")
	c2 := newTestClient("conn-2", "u1")
	other := newTestClient("conn-3", "u2")
	for _, c := range []*Client{c1, c2, other} {
		h.Register(c)
	}

	n := h.SendToUser("u1", EventFriendRequest, FriendRequestPayload{FromUserID: "u2"})
	require.Equal(t, 2, n)
	require.Equal(t, EventFriendRequest, drainOne(t, c1).Event)
	require.Equal(t, EventFriendRequest, drainOne(t, c2).Event)
	require.Empty(t, other.send)
}

func TestSendToUserOfflineIsSilentNoop(t *testing.T) {
	h := NewHub()
	require.Equal(t, 0, h.SendToUser("ghost", EventFriendRequest, FriendRequestPayload{}))
}

func TestBroadcastDropsWhenQueueFull(t *testing.T) {
	h := NewHub()
	c := newClient(nil, "conn-1", "u1", "user", 1)
	h.Register(c)
	h.JoinRoom(c, "room-a")

	require.Equal(t, 1, h.BroadcastToRoom("room-a", EventReceiveMessage, ChatMessage{Message: "1"}, nil))
	// 队列已满：丢弃而非阻塞
	require.Equal(t, 0, h.BroadcastToRoom("room-a", EventReceiveMessage, ChatMessage{Message: "2"}, nil))
}

func TestBroadcastAllReachesEveryClient(t *testing.T) {
	h := NewHub()
	a := newTestClient("conn-1", "u1")
	b := newTestClient("conn-2", "u2")
	h.Register(a)
	h.Register(b)

	n := h.BroadcastAll(EventRoomCreated, RoomInfoPayload{ID: "r1", Name: "general"})
	require.Equal(t, 2, n)
	require.Equal(t, EventRoomCreated, drainOne(t, a).Event)
	require.Equal(t, EventRoomCreated, drainOne(t, b).Event)
}

func TestEnqueueAfterCloseIsRejected(t *testing.T) {
	c := newTestClient("conn-1", "u1")
	c.Close()
	c.Close() // 幂等
	require.False(t, c.enqueue([]byte("{}")))
}
