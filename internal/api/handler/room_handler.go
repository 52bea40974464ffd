package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"cordchat/internal/chat"
	"cordchat/internal/models"
)

type RoomHandler struct {
	db       *gorm.DB
	notifier Notifier
}

func NewRoomHandler(db *gorm.DB, notifier Notifier) *RoomHandler {
	if notifier == nil {
		panic("handler: RoomHandler 需要非空的 Notifier")
	}
	return &RoomHandler{db: db, notifier: notifier}
}

// List 全部公共聊天室
func (h *RoomHandler) List(c *gin.Context) {
	var rooms []models.Room
	if err := h.db.Order("created_at ASC").Find(&rooms).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询房间列表失败"})
		return
	}
	resp := make([]gin.H, 0, len(rooms))
	for _, r := range rooms {
		resp = append(resp, gin.H{
			"id":         r.ID,
			"name":       r.Name,
			"created_by": r.CreatedBy,
			"created_at": r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"rooms": resp})
}

// Get 单个房间
func (h *RoomHandler) Get(c *gin.Context) {
	roomID := c.Param("room_id")
	var room models.Room
	if err := h.db.Where("id = ?", roomID).First(&room).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "房间不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询房间失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": gin.H{
		"id":         room.ID,
		"name":       room.Name,
		"created_by": room.CreatedBy,
		"created_at": room.CreatedAt,
	}})
}

type CreateRoomRequest struct {
	Name string `json:"name"`
}

// Create 创建房间，并向全部在线连接广播 room-created
func (h *RoomHandler) Create(c *gin.Context) {
	currentUserID := c.GetString("user_id")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体格式错误"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "房间名称不能为空"})
		return
	}

	room := models.Room{
		ID:        uuid.NewString(),
		Name:      req.Name,
		CreatedBy: currentUserID,
		CreatedAt: time.Now(),
	}
	if err := h.db.Create(&room).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建房间失败"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"room": gin.H{
		"id":         room.ID,
		"name":       room.Name,
		"created_by": room.CreatedBy,
		"created_at": room.CreatedAt,
	}})

	// 新房间对所有在线连接可见
	notifyAfterResponse(func() {
		h.notifier.BroadcastAll(chat.EventRoomCreated, chat.RoomInfoPayload{
			ID:   room.ID,
			Name: room.Name,
		})
	})
}
