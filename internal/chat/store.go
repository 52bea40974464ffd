package chat

import (
	"errors"
	"time"
)

var ErrRoomNotFound = errors.New("房间不存在")

// DMMessageRecord 持久化后的私聊消息
type DMMessageRecord struct {
	ID        string
	DMID      int64
	Content   string
	CreatedAt time.Time
}

// ChatStore 实时核心对持久化层的全部依赖
// 房间元数据、私聊参与者校验与私聊落库都在这条缝之后
type ChatStore interface {
	// RoomInfo 查询房间元数据；不存在时返回 ErrRoomNotFound
	RoomInfo(roomID string) (RoomInfoPayload, error)
	// IsDMParticipant 用户是否为该 DM 的参与者
	IsDMParticipant(dmID int64, userID string) (bool, error)
	// AppendDMMessage 落库一条私聊消息并刷新 DM 的最后活动时间
	AppendDMMessage(dmID int64, userID, content string) (DMMessageRecord, error)
}
