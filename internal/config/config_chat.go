package config

import (
	"strings"
)

// WSAuthPolicy 连接握手时的认证策略
type WSAuthPolicy string

const (
	// WSAuthStrict 缺少或无效令牌时直接拒绝连接（生产推荐）
	WSAuthStrict WSAuthPolicy = "strict"
	// WSAuthPermissive 缺少或无效令牌时降级为游客身份
	WSAuthPermissive WSAuthPolicy = "permissive"
)

// Chat 实时聊天相关配置（从 YAML 读取的原始结构）
type Chat struct {
	HistoryLimit  int    `yaml:"history_limit" json:"history_limit"`
	WSAuthPolicy  string `yaml:"ws_auth_policy" json:"ws_auth_policy"`
	SendQueueSize int    `yaml:"send_queue_size" json:"send_queue_size"`
	AnnounceJoin  *bool  `yaml:"announce_join" json:"announce_join"`
	AnnounceLeave *bool  `yaml:"announce_leave" json:"announce_leave"`
	JoinMessage   string `yaml:"join_message" json:"join_message"`
	LeaveMessage  string `yaml:"leave_message" json:"leave_message"`
}

// ChatSettings 为运行时使用的聊天配置（已解析并填充默认值）
type ChatSettings struct {
	HistoryLimit  int
	WSAuthPolicy  WSAuthPolicy
	SendQueueSize int
	AnnounceJoin  bool
	AnnounceLeave bool
	JoinMessage   string
	LeaveMessage  string
}

// ToSettings 应用默认值并解析认证策略
// 默认策略为 strict：未认证的连接不应污染在线表
func (c Chat) ToSettings() ChatSettings {
	s := ChatSettings{
		HistoryLimit:  c.HistoryLimit,
		WSAuthPolicy:  WSAuthStrict,
		SendQueueSize: c.SendQueueSize,
		AnnounceJoin:  true,
		AnnounceLeave: false,
		JoinMessage:   c.JoinMessage,
		LeaveMessage:  c.LeaveMessage,
	}
	if s.HistoryLimit <= 0 {
		s.HistoryLimit = 50
	}
	if s.SendQueueSize <= 0 {
		s.SendQueueSize = 256
	}
	switch WSAuthPolicy(strings.ToLower(strings.TrimSpace(c.WSAuthPolicy))) {
	case WSAuthPermissive:
		s.WSAuthPolicy = WSAuthPermissive
	case WSAuthStrict, "":
		s.WSAuthPolicy = WSAuthStrict
	}
	if c.AnnounceJoin != nil {
		s.AnnounceJoin = *c.AnnounceJoin
	}
	if c.AnnounceLeave != nil {
		s.AnnounceLeave = *c.AnnounceLeave
	}
	if strings.TrimSpace(s.JoinMessage) == "" {
		s.JoinMessage = "%s님이 들어왔습니다."
	}
	if strings.TrimSpace(s.LeaveMessage) == "" {
		s.LeaveMessage = "%s님이 나갔습니다."
	}
	return s
}
