package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestDeclined FriendRequestStatus = "declined"
)

type ServerInviteStatus string

const (
	ServerInvitePending  ServerInviteStatus = "pending"
	ServerInviteAccepted ServerInviteStatus = "accepted"
	ServerInviteDeclined ServerInviteStatus = "declined"
)

type MemberRole string

const (
	MemberRoleOwner  MemberRole = "owner"
	MemberRoleMember MemberRole = "member"
)

// Users
// 使用字符串 UUID 作为主键，在应用层生成
type User struct {
	ID           string    `gorm:"type:char(36);primaryKey" json:"id"`
	Username     string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Status       string    `gorm:"size:16;not null;default:active" json:"status"`
	DisplayName  *string   `gorm:"size:64" json:"display_name,omitempty"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

// 登录会话/令牌
// RefreshToken 唯一索引以便快速撤销
type AuthSession struct {
	ID           string     `gorm:"type:char(36);primaryKey" json:"id"`
	UserID       string     `gorm:"type:char(36);not null;index" json:"user_id"`
	User         *User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	RefreshToken *string    `gorm:"size:255;uniqueIndex" json:"refresh_token,omitempty"`
	ExpiresAt    time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	IP           *string    `gorm:"size:64" json:"ip,omitempty"`
	UserAgent    *string    `gorm:"size:256" json:"user_agent,omitempty"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
}

// 好友请求
// 使用三列唯一索引 (from, to, status) 以兼容多数据库
type FriendRequest struct {
	ID          string              `gorm:"type:char(36);primaryKey" json:"id"`
	FromUserID  string              `gorm:"type:char(36);not null;uniqueIndex:uidx_friend_req_triple,priority:1" json:"from_user_id"`
	ToUserID    string              `gorm:"type:char(36);not null;uniqueIndex:uidx_friend_req_triple,priority:2" json:"to_user_id"`
	Status      FriendRequestStatus `gorm:"type:varchar(16);not null;uniqueIndex:uidx_friend_req_triple,priority:3" json:"status"`
	FromUser    *User               `gorm:"foreignKey:FromUserID;constraint:OnDelete:CASCADE" json:"-"`
	ToUser      *User               `gorm:"foreignKey:ToUserID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time           `gorm:"not null" json:"created_at"`
	RespondedAt *time.Time          `json:"responded_at,omitempty"`
}

// 好友关系（无向边），唯一对 (user_id_a, user_id_b)
// a<b 约束由业务层保证
type Friendship struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	UserIDA   string    `gorm:"type:char(36);not null;uniqueIndex:uidx_friend_pair,priority:1" json:"user_id_a"`
	UserIDB   string    `gorm:"type:char(36);not null;uniqueIndex:uidx_friend_pair,priority:2" json:"user_id_b"`
	UserA     *User     `gorm:"foreignKey:UserIDA;constraint:OnDelete:CASCADE" json:"-"`
	UserB     *User     `gorm:"foreignKey:UserIDB;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// 聊天室（公共房间），任何登录用户可加入广播
type Room struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	CreatedBy string    `gorm:"type:char(36);not null;index" json:"created_by"`
	Creator   *User     `gorm:"foreignKey:CreatedBy;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// 服务器（Discord 风格的 guild），软删除
type Server struct {
	ID          string         `gorm:"type:char(36);primaryKey" json:"id"`
	Name        string         `gorm:"size:128;not null" json:"name"`
	IconURL     *string        `gorm:"size:512" json:"icon_url,omitempty"`
	OwnerUserID string         `gorm:"type:char(36);not null;index" json:"owner_user_id"`
	OwnerUser   *User          `gorm:"foreignKey:OwnerUserID;constraint:OnDelete:CASCADE" json:"-"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

// 服务器成员，复合主键 (server_id, user_id)
type ServerMember struct {
	ServerID string     `gorm:"type:char(36);primaryKey" json:"server_id"`
	UserID   string     `gorm:"type:char(36);primaryKey" json:"user_id"`
	Server   *Server    `gorm:"foreignKey:ServerID;constraint:OnDelete:CASCADE" json:"-"`
	User     *User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Role     MemberRole `gorm:"type:varchar(16);not null;default:member" json:"role"`
	JoinedAt time.Time  `gorm:"not null" json:"joined_at"`
}

// 服务器邀请
// 与好友请求相同的三列唯一索引策略
type ServerInvite struct {
	ID          string             `gorm:"type:char(36);primaryKey" json:"id"`
	ServerID    string             `gorm:"type:char(36);not null;index" json:"server_id"`
	Server      *Server            `gorm:"foreignKey:ServerID;constraint:OnDelete:CASCADE" json:"-"`
	FromUserID  string             `gorm:"type:char(36);not null" json:"from_user_id"`
	ToUserID    string             `gorm:"type:char(36);not null;index" json:"to_user_id"`
	FromUser    *User              `gorm:"foreignKey:FromUserID;constraint:OnDelete:CASCADE" json:"-"`
	ToUser      *User              `gorm:"foreignKey:ToUserID;constraint:OnDelete:CASCADE" json:"-"`
	Status      ServerInviteStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt   time.Time          `gorm:"not null" json:"created_at"`
	RespondedAt *time.Time         `json:"responded_at,omitempty"`
}

// 服务器下的文字频道
type Channel struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	ServerID  string    `gorm:"type:char(36);not null;index" json:"server_id"`
	Server    *Server   `gorm:"foreignKey:ServerID;constraint:OnDelete:CASCADE" json:"-"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Type      string    `gorm:"size:16;not null;default:text" json:"type"`
	Topic     *string   `gorm:"size:512" json:"topic,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// 频道内的持久化消息，软删除
// 辅助索引 (channel_id, created_at) 用于时间轴分页
type Message struct {
	ID          string         `gorm:"type:char(36);primaryKey" json:"id"`
	ChannelID   string         `gorm:"type:char(36);not null;index:idx_channel_created_at,priority:1" json:"channel_id"`
	Channel     *Channel       `gorm:"foreignKey:ChannelID;constraint:OnDelete:CASCADE" json:"-"`
	SenderID    *string        `gorm:"type:char(36);index" json:"sender_id,omitempty"`
	Sender      *User          `gorm:"foreignKey:SenderID;constraint:OnDelete:SET NULL" json:"-"`
	ContentText *string        `gorm:"type:text" json:"content_text,omitempty"`
	PayloadJSON datatypes.JSON `gorm:"type:json" json:"payload_json,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index:idx_channel_created_at,priority:2,sort:desc" json:"created_at"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// 两人私聊，数值自增主键（房间键为 dm_<id>）
type DM struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// 私聊参与者，复合主键 (dm_id, user_id)，恒为两行
type DMParticipant struct {
	DMID   int64  `gorm:"column:dm_id;primaryKey" json:"dm_id"`
	UserID string `gorm:"type:char(36);primaryKey" json:"user_id"`
	DM     *DM    `gorm:"foreignKey:DMID;constraint:OnDelete:CASCADE" json:"-"`
	User   *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (DMParticipant) TableName() string { return "dm_participants" }

// 私聊消息
type DMMessage struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	DMID      int64     `gorm:"column:dm_id;not null;index:idx_dm_created_at,priority:1" json:"dm_id"`
	DM        *DM       `gorm:"foreignKey:DMID;constraint:OnDelete:CASCADE" json:"-"`
	UserID    string    `gorm:"type:char(36);not null;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"not null;index:idx_dm_created_at,priority:2,sort:desc" json:"created_at"`
}

func (DMMessage) TableName() string { return "dm_messages" }
