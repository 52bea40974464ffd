package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"cordchat/internal/config"
	"cordchat/internal/server/auth"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T, policy string) (*httptest.Server, *Hub, *MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	store := NewMemoryStore()
	settings := config.Chat{WSAuthPolicy: policy}.ToSettings()
	gw := NewGateway(hub, store, settings, testSecret)

	r := gin.New()
	r.GET("/ws", gw.Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, hub, store
}

func signTestToken(t *testing.T, userID, username string) string {
	t.Helper()
	token, _, err := auth.SignAccessToken(userID, username, time.Minute, testSecret)
	require.NoError(t, err)
	return token
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if token != "" {
		u += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := EncodeEnvelope(event, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

func readEvent(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func waitOnline(t *testing.T, hub *Hub, userID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Registry().IsOnline(userID) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("用户 %s 未在期限内上线", userID)
}

func TestStrictPolicyRejectsMissingToken(t *testing.T) {
	srv, hub, _ := newTestServer(t, "strict")

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, 0, hub.Registry().OnlineUserCount())
}

func TestStrictPolicyRejectsInvalidToken(t *testing.T) {
	srv, hub, _ := newTestServer(t, "strict")

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=not-a-jwt"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, 0, hub.Registry().OnlineUserCount())
}

func TestPermissivePolicyFallsBackToGuest(t *testing.T) {
	srv, hub, _ := newTestServer(t, "permissive")

	conn := dialWS(t, srv, "")
	waitOnline(t, hub, GuestUserID)

	// 游客可以进房并收到 room-info 兜底
	sendEvent(t, conn, EventJoinRoom, "lobby")
	env := readEvent(t, conn)
	require.Equal(t, EventRoomInfo, env.Event)
}

func TestJoinRoomEmitsRoomInfoThenSystemMessage(t *testing.T) {
	srv, hub, store := newTestServer(t, "strict")
	store.AddRoom("room-1", "general")

	conn := dialWS(t, srv, signTestToken(t, "u1", "mina"))
	waitOnline(t, hub, "u1")

	sendEvent(t, conn, EventJoinRoom, map[string]string{"roomId": "room-1", "username": "mina"})

	// 顺序：先 room-info，再系统进场消息
	env := readEvent(t, conn)
	require.Equal(t, EventRoomInfo, env.Event)
	var info RoomInfoPayload
	require.NoError(t, json.Unmarshal(env.Data, &info))
	require.Equal(t, "general", info.Name)

	env = readEvent(t, conn)
	require.Equal(t, EventReceiveMessage, env.Event)
	var msg ChatMessage
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	require.True(t, msg.IsSystem)
	require.Equal(t, SystemUserID, msg.UserID)
	require.Contains(t, msg.Message, "mina")
}

func TestJoinRoomFallsBackToRoomIDAsName(t *testing.T) {
	srv, hub, _ := newTestServer(t, "strict")

	conn := dialWS(t, srv, signTestToken(t, "u1", "mina"))
	waitOnline(t, hub, "u1")

	sendEvent(t, conn, EventJoinRoom, "no-such-room")
	env := readEvent(t, conn)
	require.Equal(t, EventRoomInfo, env.Event)
	var info RoomInfoPayload
	require.NoError(t, json.Unmarshal(env.Data, &info))
	require.Equal(t, "no-such-room", info.ID)
	require.Equal(t, "no-such-room", info.Name)
}

func TestSendMessageRelaysToRoomExcludingSender(t *testing.T) {
	srv, hub, store := newTestServer(t, "strict")
	store.AddRoom("room-1", "general")

	sender := dialWS(t, srv, signTestToken(t, "u1", "mina"))
	peer := dialWS(t, srv, signTestToken(t, "u2", "dana"))
	waitOnline(t, hub, "u1")
	waitOnline(t, hub, "u2")

	// 先后入房，逐个排空 room-info 与进场消息，保证时序确定
	sendEvent(t, sender, EventJoinRoom, "room-1")
	require.Equal(t, EventRoomInfo, readEvent(t, sender).Event)
	require.Equal(t, EventReceiveMessage, readEvent(t, sender).Event)

	sendEvent(t, peer, EventJoinRoom, "room-1")
	require.Equal(t, EventRoomInfo, readEvent(t, peer).Event)
	require.Equal(t, EventReceiveMessage, readEvent(t, peer).Event)
	// sender 也会看到 peer 的进场消息
	require.Equal(t, EventReceiveMessage, readEvent(t, sender).Event)

	sendEvent(t, sender, EventSendMessage, SendMessagePayload{RoomID: "room-1", Message: "hello"})

	env := readEvent(t, peer)
	require.Equal(t, EventReceiveMessage, env.Event)
	var msg ChatMessage
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	require.Equal(t, "hello", msg.Message)
	require.Equal(t, "u1", msg.UserID)
	require.False(t, msg.IsSystem)

	// 发送者自己收不到回显
	require.NoError(t, sender.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := sender.ReadMessage()
	require.Error(t, err)
}

func TestSendDMEchoesToAllSenderConnections(t *testing.T) {
	srv, hub, store := newTestServer(t, "strict")
	store.AddDM(7, "u1", "u2")

	// 同一用户两条连接 + 对端一条
	c1 := dialWS(t, srv, signTestToken(t, "u1", "mina"))
	c2 := dialWS(t, srv, signTestToken(t, "u1", "mina"))
	peer := dialWS(t, srv, signTestToken(t, "u2", "dana"))
	waitOnline(t, hub, "u1")
	waitOnline(t, hub, "u2")

	for _, conn := range []*websocket.Conn{c1, c2, peer} {
		sendEvent(t, conn, EventJoinDM, 7)
	}
	// join-dm 无应答事件，给 Hub 一点入房时间
	time.Sleep(50 * time.Millisecond)

	sendEvent(t, c1, EventSendDM, map[string]any{"dmId": 7, "message": "hey"})

	for _, conn := range []*websocket.Conn{c1, c2, peer} {
		env := readEvent(t, conn)
		require.Equal(t, EventReceiveDM, env.Event)
		var dm DMMessagePayload
		require.NoError(t, json.Unmarshal(env.Data, &dm))
		require.Equal(t, int64(7), dm.DMID)
		require.Equal(t, "u1", dm.UserID)
		require.Equal(t, "hey", dm.Message)
	}

	// 消息已持久化
	require.Len(t, store.Messages(7), 1)
}

func TestSendDMFromNonParticipantIsSilentlyDropped(t *testing.T) {
	srv, hub, store := newTestServer(t, "strict")
	store.AddDM(7, "u1", "u2")

	intruder := dialWS(t, srv, signTestToken(t, "u3", "eve"))
	member := dialWS(t, srv, signTestToken(t, "u1", "mina"))
	waitOnline(t, hub, "u3")
	waitOnline(t, hub, "u1")

	sendEvent(t, intruder, EventJoinDM, 7)
	sendEvent(t, member, EventJoinDM, 7)
	time.Sleep(50 * time.Millisecond)

	sendEvent(t, intruder, EventSendDM, map[string]any{"dmId": 7, "message": "sneak"})

	// 静默丢弃：无人收到，且不落库
	require.NoError(t, member.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := member.ReadMessage()
	require.Error(t, err)
	require.Empty(t, store.Messages(7))
}

func TestDisconnectCleansUpPresence(t *testing.T) {
	srv, hub, _ := newTestServer(t, "strict")

	conn := dialWS(t, srv, signTestToken(t, "u1", "mina"))
	waitOnline(t, hub, "u1")

	require.NoError(t, conn.Close())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !hub.Registry().IsOnline("u1") {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("断开后用户仍在线")
}

// roomInfoHookStore 在查询房间元数据时执行回调，用于观察入房时序
type roomInfoHookStore struct {
	ChatStore
	onRoomInfo func()
}

func (s *roomInfoHookStore) RoomInfo(roomID string) (RoomInfoPayload, error) {
	if s.onRoomInfo != nil {
		s.onRoomInfo()
	}
	return s.ChatStore.RoomInfo(roomID)
}

func TestJoinRoomEntersRoomBeforeRoomInfo(t *testing.T) {
	hub := NewHub()
	c := newTestClient("conn-1", "u1")
	hub.Register(c)

	inRoomAtFetch := false
	store := &roomInfoHookStore{
		ChatStore: NewMemoryStore(),
		onRoomInfo: func() {
			inRoomAtFetch = hub.InRoom(c, "room-1")
		},
	}
	gw := NewGateway(hub, store, config.Chat{}.ToSettings(), testSecret)

	gw.onJoinRoom(c, json.RawMessage(`"room-1"`))

	// 入房先于 room-info：并发的房间广播从此刻起已能达及加入者
	require.True(t, inRoomAtFetch)

	// 对加入者本连接仍然是 room-info 先于自己的进场消息
	require.Equal(t, EventRoomInfo, drainOne(t, c).Event)
	env := drainOne(t, c)
	require.Equal(t, EventReceiveMessage, env.Event)
	var msg ChatMessage
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	require.True(t, msg.IsSystem)
}
