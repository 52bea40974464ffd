package chat

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"cordchat/internal/config"
	"cordchat/internal/middleware"
	"cordchat/internal/server/auth"
)

// 游客身份：permissive 策略下未认证连接的降级身份
const (
	GuestUserID   = "guest"
	GuestUsername = "Guest"
)

// Gateway WebSocket 网关：握手认证、协议解析与事件分发
type Gateway struct {
	hub       *Hub
	store     ChatStore
	settings  config.ChatSettings
	jwtSecret string
	upgrader  websocket.Upgrader
}

func NewGateway(hub *Hub, store ChatStore, settings config.ChatSettings, jwtSecret string) *Gateway {
	if hub == nil {
		panic("chat: Gateway 需要非空的 Hub")
	}
	if store == nil {
		panic("chat: Gateway 需要非空的 ChatStore")
	}
	return &Gateway{
		hub:       hub,
		store:     store,
		settings:  settings,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 跨域由部署层把关，网关不重复限制
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// authenticate 按配置的策略解析握手令牌
// strict：缺少或无效令牌返回错误，连接在升级前被拒绝
// permissive：降级为游客身份，连接仍可进入（在线表按 guest 归并）
func (g *Gateway) authenticate(c *gin.Context) (userID, username string, err error) {
	tokenStr := middleware.TokenFromHeaderOrQuery(c)
	if tokenStr != "" {
		claims, perr := auth.ParseAndValidate(tokenStr, g.jwtSecret)
		if perr == nil {
			return claims.UserID, claims.Username, nil
		}
		if g.settings.WSAuthPolicy == config.WSAuthStrict {
			return "", "", fmt.Errorf("访问令牌无效: %w", perr)
		}
		log.Printf("握手令牌无效，降级为游客: %v", perr)
		return GuestUserID, GuestUsername, nil
	}
	if g.settings.WSAuthPolicy == config.WSAuthStrict {
		return "", "", fmt.Errorf("缺少访问令牌")
	}
	return GuestUserID, GuestUsername, nil
}

// Handle GET /ws：认证 → 升级 → 注册 → 进入读循环
func (g *Gateway) Handle(c *gin.Context) {
	userID, username, err := g.authenticate(c)
	if err != nil {
		log.Printf("拒绝 WebSocket 握手: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "认证失败"})
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket 升级失败: %v", err)
		return
	}

	client := newClient(conn, uuid.NewString(), userID, username, g.settings.SendQueueSize)
	g.hub.Register(client)
	go client.writePump()
	g.readLoop(client)
}

// readLoop 入站泵：逐条读取、解包、分发；返回即断连清理
func (g *Gateway) readLoop(c *Client) {
	defer g.hub.Unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("连接异常断开 connID=%s userID=%s: %v", c.ID(), c.UserID(), err)
			}
			return
		}
		g.dispatch(c, raw)
	}
}

// dispatch 单事件处理，带独立的错误边界：
// 某个事件的 panic 只记录日志，不拖垮整条连接
func (g *Gateway) dispatch(c *Client, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("事件处理崩溃已捕获 connID=%s userID=%s: %v", c.ID(), c.UserID(), r)
		}
	}()

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || strings.TrimSpace(env.Event) == "" {
		log.Printf("入站消息解包失败 connID=%s: %v", c.ID(), err)
		return
	}

	switch env.Event {
	case EventJoinRoom:
		g.onJoinRoom(c, env.Data)
	case EventLeaveRoom:
		g.onLeaveRoom(c, env.Data)
	case EventSendMessage:
		g.onSendMessage(c, env.Data)
	case EventJoinDM:
		g.onJoinDM(c, env.Data)
	case EventSendDM:
		g.onSendDM(c, env.Data)
	default:
		// 未知事件忽略：协议允许客户端先行升级
		log.Printf("忽略未知事件 connID=%s event=%s", c.ID(), env.Event)
	}
}

// onJoinRoom 加入房间
// 顺序约定：先入房，再单发 room-info 给加入者，最后广播系统进场消息
// 入房先行，期间其他协程对该房间的广播不会漏掉加入者；
// 同一连接的 FIFO 出站队列保证加入者先看到 room-info 再看到自己的进场消息
func (g *Gateway) onJoinRoom(c *Client, raw []byte) {
	p, err := ParseJoinRoom(raw)
	if err != nil {
		log.Printf("join-room 载荷错误 connID=%s: %v", c.ID(), err)
		return
	}

	g.hub.JoinRoom(c, p.RoomID)

	info, err := g.store.RoomInfo(p.RoomID)
	if err != nil {
		// 元数据查不到不阻断加入，用房间ID兜底
		if err != ErrRoomNotFound {
			log.Printf("查询房间元数据失败 room=%s: %v", p.RoomID, err)
		}
		info = RoomInfoPayload{ID: p.RoomID, Name: p.RoomID}
	}
	g.hub.SendTo(c, EventRoomInfo, info)

	if g.settings.AnnounceJoin {
		name := c.Username()
		if p.Username != "" {
			name = p.Username
		}
		g.broadcastSystem(p.RoomID, fmt.Sprintf(g.settings.JoinMessage, name))
	}
}

// onLeaveRoom 离开房间；退场播报默认关闭，由配置开启
func (g *Gateway) onLeaveRoom(c *Client, raw []byte) {
	p, err := ParseJoinRoom(raw)
	if err != nil {
		log.Printf("leave-room 载荷错误 connID=%s: %v", c.ID(), err)
		return
	}
	if !g.hub.InRoom(c, p.RoomID) {
		return
	}
	g.hub.LeaveRoom(c, p.RoomID)

	if g.settings.AnnounceLeave {
		name := c.Username()
		if p.Username != "" {
			name = p.Username
		}
		g.broadcastSystem(p.RoomID, fmt.Sprintf(g.settings.LeaveMessage, name))
	}
}

// broadcastSystem 向房间广播一条系统消息（包含触发者在内的所有成员）
func (g *Gateway) broadcastSystem(roomID, text string) {
	g.hub.BroadcastToRoom(roomID, EventReceiveMessage, ChatMessage{
		ID:        uuid.NewString(),
		Message:   text,
		UserID:    SystemUserID,
		Username:  SystemUsername,
		Timestamp: time.Now().Format(time.RFC3339),
		IsSystem:  true,
	}, nil)
}

// onSendMessage 房间消息转发：发给房间内除发送者以外的全部连接
// 载荷里的 userId/username 只覆盖展示字段，不越过认证身份
func (g *Gateway) onSendMessage(c *Client, raw []byte) {
	p, err := ParseSendMessage(raw)
	if err != nil {
		log.Printf("send-message 载荷错误 connID=%s: %v", c.ID(), err)
		return
	}
	userID := c.UserID()
	username := c.Username()
	if p.UserID != "" {
		userID = p.UserID
	}
	if p.Username != "" {
		username = p.Username
	}
	g.hub.BroadcastToRoom(p.RoomID, EventReceiveMessage, ChatMessage{
		ID:        uuid.NewString(),
		Message:   p.Message,
		UserID:    userID,
		Username:  username,
		Timestamp: time.Now().Format(time.RFC3339),
	}, c)
}

// onJoinDM 进入 DM 广播组；是否为参与者在发消息时校验
func (g *Gateway) onJoinDM(c *Client, raw []byte) {
	dmID, err := ParseDMID(raw)
	if err != nil {
		log.Printf("join-dm 载荷错误 connID=%s: %v", c.ID(), err)
		return
	}
	g.hub.JoinRoom(c, DMRoomKey(dmID))
}

// onSendDM 私聊消息：参与者校验 → 落库 → 向 DM 房间广播（含发送者回显）
// 非参与者的发送静默丢弃，仅记日志，不回错误事件
func (g *Gateway) onSendDM(c *Client, raw []byte) {
	p, err := ParseSendDM(raw)
	if err != nil {
		log.Printf("send-dm 载荷错误 connID=%s: %v", c.ID(), err)
		return
	}
	if c.UserID() == GuestUserID {
		log.Printf("游客不可发送私聊 connID=%s dm=%d", c.ID(), p.DMID)
		return
	}
	ok, err := g.store.IsDMParticipant(p.DMID, c.UserID())
	if err != nil {
		log.Printf("私聊参与者校验失败 dm=%d userID=%s: %v", p.DMID, c.UserID(), err)
		return
	}
	if !ok {
		log.Printf("非参与者发送私聊，已丢弃 dm=%d userID=%s", p.DMID, c.UserID())
		return
	}
	rec, err := g.store.AppendDMMessage(p.DMID, c.UserID(), p.Message)
	if err != nil {
		log.Printf("私聊消息落库失败 dm=%d userID=%s: %v", p.DMID, c.UserID(), err)
		return
	}
	g.hub.BroadcastToRoom(DMRoomKey(p.DMID), EventReceiveDM, DMMessagePayload{
		ID:        rec.ID,
		DMID:      rec.DMID,
		UserID:    c.UserID(),
		Username:  c.Username(),
		Message:   rec.Content,
		CreatedAt: rec.CreatedAt,
	}, nil)
}
