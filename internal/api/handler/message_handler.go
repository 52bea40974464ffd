package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cordchat/internal/models"
)

type MessageHandler struct {
	db           *gorm.DB
	historyLimit int
}

func NewMessageHandler(db *gorm.DB, historyLimit int) *MessageHandler {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &MessageHandler{db: db, historyLimit: historyLimit}
}

// parseLimit 读取 limit 查询参数，超界回退默认值
func (h *MessageHandler) parseLimit(c *gin.Context) int {
	limit := h.historyLimit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	return limit
}

// requireChannelAccess 校验当前用户是频道所属服务器的成员
func (h *MessageHandler) requireChannelAccess(c *gin.Context, channelID string) (ok bool) {
	currentUserID := c.GetString("user_id")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return false
	}
	var channel models.Channel
	if err := h.db.Where("id = ?", channelID).First(&channel).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "频道不存在"})
			return false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询频道失败"})
		return false
	}
	var member int64
	if err := h.db.Model(&models.ServerMember{}).
		Where("server_id = ? AND user_id = ?", channel.ServerID, currentUserID).
		Count(&member).Error; err != nil || member == 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": "您不是该服务器成员"})
		return false
	}
	return true
}

func messageResp(msgs []models.Message) []gin.H {
	resp := make([]gin.H, 0, len(msgs))
	for _, m := range msgs {
		entry := gin.H{
			"id":         m.ID,
			"channel_id": m.ChannelID,
			"sender_id":  m.SenderID,
			"created_at": m.CreatedAt,
		}
		if m.ContentText != nil {
			entry["content"] = *m.ContentText
		}
		if len(m.PayloadJSON) > 0 {
			entry["payload"] = m.PayloadJSON
		}
		resp = append(resp, entry)
	}
	return resp
}

// GetLatest 频道最近消息，正序返回
func (h *MessageHandler) GetLatest(c *gin.Context) {
	channelID := c.Query("channel_id")
	if channelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 channel_id"})
		return
	}
	if !h.requireChannelAccess(c, channelID) {
		return
	}
	limit := h.parseLimit(c)

	var msgs []models.Message
	if err := h.db.Where("channel_id = ?", channelID).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询消息失败"})
		return
	}
	// 翻回正序
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	c.JSON(http.StatusOK, gin.H{"messages": messageResp(msgs)})
}

// GetHistoryBefore 以某条消息为锚点向更早翻页
func (h *MessageHandler) GetHistoryBefore(c *gin.Context) {
	channelID := c.Query("channel_id")
	anchorID := c.Query("before")
	if channelID == "" || anchorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 channel_id 或 before"})
		return
	}
	if !h.requireChannelAccess(c, channelID) {
		return
	}
	var anchor models.Message
	if err := h.db.Where("id = ? AND channel_id = ?", anchorID, channelID).First(&anchor).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "锚点消息不存在"})
		return
	}
	limit := h.parseLimit(c)

	var msgs []models.Message
	if err := h.db.Where("channel_id = ? AND created_at < ?", channelID, anchor.CreatedAt).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询消息失败"})
		return
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	c.JSON(http.StatusOK, gin.H{"messages": messageResp(msgs)})
}

// GetHistoryAfter 以某条消息为锚点向更新翻页（断线重连补拉）
func (h *MessageHandler) GetHistoryAfter(c *gin.Context) {
	channelID := c.Query("channel_id")
	anchorID := c.Query("after")
	if channelID == "" || anchorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 channel_id 或 after"})
		return
	}
	if !h.requireChannelAccess(c, channelID) {
		return
	}
	var anchor models.Message
	if err := h.db.Where("id = ? AND channel_id = ?", anchorID, channelID).First(&anchor).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "锚点消息不存在"})
		return
	}
	limit := h.parseLimit(c)

	var msgs []models.Message
	if err := h.db.Where("channel_id = ? AND created_at > ?", channelID, anchor.CreatedAt).
		Order("created_at ASC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询消息失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messageResp(msgs)})
}

type CreateMessageRequest struct {
	Content     string          `json:"content"`
	Attachments json.RawMessage `json:"attachments,omitempty"`
}

// Create 向频道发布一条持久化消息
func (h *MessageHandler) Create(c *gin.Context) {
	currentUserID := c.GetString("user_id")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}
	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体格式错误"})
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" && len(req.Attachments) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "消息内容不能为空"})
		return
	}

	channelID := c.Param("channel_id")
	if !h.requireChannelAccess(c, channelID) {
		return
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		SenderID:  &currentUserID,
		CreatedAt: time.Now(),
	}
	if req.Content != "" {
		msg.ContentText = &req.Content
	}
	if len(req.Attachments) > 0 {
		msg.PayloadJSON = datatypes.JSON(req.Attachments)
	}
	if err := h.db.Create(&msg).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存消息失败"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": messageResp([]models.Message{msg})[0]})
}

type EditMessageRequest struct {
	Content string `json:"content"`
}

// Edit 修改自己发的消息
func (h *MessageHandler) Edit(c *gin.Context) {
	currentUserID := c.GetString("user_id")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}
	var req EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体格式错误"})
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "消息内容不能为空"})
		return
	}

	var msg models.Message
	if err := h.db.Where("id = ?", c.Param("message_id")).First(&msg).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "消息不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询消息失败"})
		return
	}
	if msg.SenderID == nil || *msg.SenderID != currentUserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "只能修改自己的消息"})
		return
	}

	now := time.Now()
	if err := h.db.Model(&msg).Updates(map[string]interface{}{
		"content_text": req.Content,
		"updated_at":   &now,
	}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "修改消息失败"})
		return
	}
	msg.ContentText = &req.Content
	msg.UpdatedAt = &now
	c.JSON(http.StatusOK, gin.H{"message": messageResp([]models.Message{msg})[0]})
}

// Delete 删除自己发的消息（软删除）
func (h *MessageHandler) Delete(c *gin.Context) {
	currentUserID := c.GetString("user_id")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}
	var msg models.Message
	if err := h.db.Where("id = ?", c.Param("message_id")).First(&msg).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "消息不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询消息失败"})
		return
	}
	if msg.SenderID == nil || *msg.SenderID != currentUserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "只能删除自己的消息"})
		return
	}
	if err := h.db.Delete(&msg).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除消息失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "消息已删除"})
}
