package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"cordchat/internal/models"
)

// GormStore 基于 GORM 的 ChatStore 实现
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var _ ChatStore = (*GormStore)(nil)

func (s *GormStore) RoomInfo(roomID string) (RoomInfoPayload, error) {
	var room models.Room
	if err := s.db.Where("id = ?", roomID).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RoomInfoPayload{}, ErrRoomNotFound
		}
		return RoomInfoPayload{}, err
	}
	return RoomInfoPayload{ID: room.ID, Name: room.Name}, nil
}

func (s *GormStore) IsDMParticipant(dmID int64, userID string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.DMParticipant{}).
		Where("dm_id = ? AND user_id = ?", dmID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) AppendDMMessage(dmID int64, userID, content string) (DMMessageRecord, error) {
	now := time.Now()
	msg := models.DMMessage{
		ID:        uuid.NewString(),
		DMID:      dmID,
		UserID:    userID,
		Content:   content,
		CreatedAt: now,
	}
	if err := s.db.Create(&msg).Error; err != nil {
		return DMMessageRecord{}, err
	}
	// 刷新最后活动时间（DM 列表按此排序）；失败不影响消息本身
	_ = s.db.Model(&models.DM{}).Where("id = ?", dmID).Update("updated_at", now).Error

	return DMMessageRecord{ID: msg.ID, DMID: dmID, Content: content, CreatedAt: now}, nil
}
