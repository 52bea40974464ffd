package chat

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// 入站事件（客户端 → 服务端）
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSendMessage = "send-message"
	EventJoinDM      = "join-dm"
	EventSendDM      = "send-dm"
)

// 出站事件（服务端 → 客户端）
const (
	EventRoomInfo       = "room-info"
	EventRoomCreated    = "room-created"
	EventReceiveMessage = "receive-message"
	EventReceiveDM      = "receive-dm"

	EventFriendRequest  = "friend-request"
	EventFriendAccepted = "friend-accepted"
	EventFriendDeclined = "friend-declined"

	EventServerInvite         = "server-invite"
	EventServerInviteAccepted = "server-invite-accepted"
	EventServerInviteDeclined = "server-invite-declined"
)

// 系统消息的固定发送者身份
const (
	SystemUserID   = "system"
	SystemUsername = "System"
)

// Envelope 连接上双向流动的消息单元
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeEnvelope 将事件与载荷编码为一条完整的出站消息
func EncodeEnvelope(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

var (
	ErrBadPayload = errors.New("载荷格式错误")
)

// JoinRoomPayload join-room 规范化后的载荷
// username 仅影响系统消息的措辞，不改变连接的认证身份
type JoinRoomPayload struct {
	RoomID   string
	Username string
}

// ParseJoinRoom 接受两种线格式：裸字符串房间ID，或 {roomId, username} 对象
// 在协议边界做一次规范化，内部处理只见统一形态
func ParseJoinRoom(raw json.RawMessage) (JoinRoomPayload, error) {
	var p JoinRoomPayload
	if len(raw) == 0 {
		return p, ErrBadPayload
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		p.RoomID = strings.TrimSpace(s)
	} else {
		var obj struct {
			RoomID   string `json:"roomId"`
			Username string `json:"username"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return p, ErrBadPayload
		}
		p.RoomID = strings.TrimSpace(obj.RoomID)
		p.Username = strings.TrimSpace(obj.Username)
	}
	if p.RoomID == "" {
		return p, ErrBadPayload
	}
	return p, nil
}

// SendMessagePayload send-message 的载荷
// userId/username 为可选的显示覆盖提示，认证身份为准
type SendMessagePayload struct {
	RoomID   string `json:"roomId"`
	Message  string `json:"message"`
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
}

// ParseSendMessage 解析并校验 send-message
func ParseSendMessage(raw json.RawMessage) (SendMessagePayload, error) {
	var p SendMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, ErrBadPayload
	}
	if strings.TrimSpace(p.RoomID) == "" || p.Message == "" {
		return p, ErrBadPayload
	}
	return p, nil
}

// ParseDMID 接受数字或字符串两种形态的 DM 编号（join-dm 的载荷）
func ParseDMID(raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	if s == "" {
		return 0, ErrBadPayload
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrBadPayload
	}
	return id, nil
}

// SendDMPayload send-dm 规范化后的载荷
type SendDMPayload struct {
	DMID    int64
	Message string
}

// ParseSendDM 解析 send-dm；dmId 同样允许数字或字符串
func ParseSendDM(raw json.RawMessage) (SendDMPayload, error) {
	var p SendDMPayload
	var obj struct {
		DMID    json.RawMessage `json:"dmId"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return p, ErrBadPayload
	}
	id, err := ParseDMID(obj.DMID)
	if err != nil {
		return p, err
	}
	text := strings.TrimSpace(obj.Message)
	if text == "" {
		return p, ErrBadPayload
	}
	p.DMID = id
	p.Message = text
	return p, nil
}

// DMRoomKey DM 房间的广播键，约定为 dm_<编号>
func DMRoomKey(dmID int64) string {
	return "dm_" + strconv.FormatInt(dmID, 10)
}

// RoomInfoPayload room-info 的载荷；查不到元数据时以房间ID兜底作为名称
type RoomInfoPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChatMessage receive-message 的载荷（普通消息与系统消息共用）
type ChatMessage struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
	IsSystem  bool   `json:"isSystem,omitempty"`
}

// DMMessagePayload receive-dm 的载荷，字段名与历史接口保持一致
type DMMessagePayload struct {
	ID        string    `json:"id"`
	DMID      int64     `json:"dm_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// FriendRequestPayload friend-request 的载荷
type FriendRequestPayload struct {
	FromUserID   string    `json:"from_user_id"`
	FromUsername string    `json:"from_username"`
	CreatedAt    time.Time `json:"created_at"`
}

// FriendDecisionPayload friend-accepted / friend-declined 的载荷
type FriendDecisionPayload struct {
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
}

// ServerInvitePayload server-invite 的载荷
type ServerInvitePayload struct {
	InviteID     string    `json:"inviteId"`
	ServerID     string    `json:"serverId"`
	ServerName   string    `json:"serverName"`
	FromUserID   string    `json:"fromUserId"`
	FromUsername string    `json:"fromUsername"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ServerInviteDecisionPayload server-invite-accepted / declined 的载荷
type ServerInviteDecisionPayload struct {
	InviteID string `json:"inviteId"`
	ServerID string `json:"serverId"`
	ToUserID string `json:"toUserId"`
}
