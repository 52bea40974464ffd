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

type FriendHandler struct {
	db       *gorm.DB
	notifier Notifier
}

func NewFriendHandler(db *gorm.DB, notifier Notifier) *FriendHandler {
	if notifier == nil {
		panic("handler: FriendHandler 需要非空的 Notifier")
	}
	return &FriendHandler{db: db, notifier: notifier}
}

type SendFriendRequestRequest struct {
	// 二选一：用户名标识或目标用户ID
	Identifier   string `json:"identifier"`
	TargetUserID string `json:"targetUserId"`
}

// orderedPair 无向好友边的规范化存储顺序
func orderedPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

// SendRequest 发起好友请求；对方在线时实时推送 friend-request
func (h *FriendHandler) SendRequest(c *gin.Context) {
	currentUserID := c.GetString("user_id")
	currentUsername := c.GetString("username")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}
	var req SendFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体格式错误"})
		return
	}

	// 定位目标用户：优先用户名标识，其次用户ID
	var target models.User
	var err error
	switch {
	case strings.TrimSpace(req.Identifier) != "":
		err = h.db.Where("username = ?", strings.TrimSpace(req.Identifier)).First(&target).Error
	case strings.TrimSpace(req.TargetUserID) != "":
		err = h.db.Where("id = ?", strings.TrimSpace(req.TargetUserID)).First(&target).Error
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少目标用户"})
		return
	}
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "目标用户不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询用户失败"})
		return
	}
	if target.ID == currentUserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "不能添加自己为好友"})
		return
	}

	// 已是好友则拒绝重复申请
	a, b := orderedPair(currentUserID, target.ID)
	var friendCount int64
	if err := h.db.Model(&models.Friendship{}).
		Where("user_id_a = ? AND user_id_b = ?", a, b).
		Count(&friendCount).Error; err == nil && friendCount > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "已经是好友"})
		return
	}

	now := time.Now()
	fr := models.FriendRequest{
		ID:         uuid.NewString(),
		FromUserID: currentUserID,
		ToUserID:   target.ID,
		Status:     models.FriendRequestPending,
		CreatedAt:  now,
	}
	if err := h.db.Create(&fr).Error; err != nil {
		if isDuplicateKeyErr(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "已有待处理的好友请求"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建好友请求失败"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"request": gin.H{
		"id":         fr.ID,
		"to_user_id": fr.ToUserID,
		"status":     fr.Status,
		"created_at": fr.CreatedAt,
	}})

	// 响应已写出，实时通知走独立协程；对方离线时静默
	toUserID := target.ID
	notifyAfterResponse(func() {
		h.notifier.SendToUser(toUserID, chat.EventFriendRequest, chat.FriendRequestPayload{
			FromUserID:   currentUserID,
			FromUsername: currentUsername,
			CreatedAt:    now,
		})
	})
}

// ListIncoming 查询待处理的收到的好友请求
func (h *FriendHandler) ListIncoming(c *gin.Context) {
	currentUserID := c.GetString("user_id")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}
	var reqs []models.FriendRequest
	if err := h.db.Preload("FromUser").
		Where("to_user_id = ? AND status = ?", currentUserID, models.FriendRequestPending).
		Order("created_at DESC").
		Find(&reqs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询好友请求失败"})
		return
	}
	resp := make([]gin.H, 0, len(reqs))
	for _, r := range reqs {
		fromName := ""
		if r.FromUser != nil {
			fromName = r.FromUser.Username
		}
		resp = append(resp, gin.H{
			"id":            r.ID,
			"from_user_id":  r.FromUserID,
			"from_username": fromName,
			"created_at":    r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"requests": resp})
}

// ListSent 查询自己发出且待处理的好友请求
func (h *FriendHandler) ListSent(c *gin.Context) {
	currentUserID := c.GetString("user_id")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}
	var reqs []models.FriendRequest
	if err := h.db.Preload("ToUser").
		Where("from_user_id = ? AND status = ?", currentUserID, models.FriendRequestPending).
		Order("created_at DESC").
		Find(&reqs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询好友请求失败"})
		return
	}
	resp := make([]gin.H, 0, len(reqs))
	for _, r := range reqs {
		toName := ""
		if r.ToUser != nil {
			toName = r.ToUser.Username
		}
		resp = append(resp, gin.H{
			"id":          r.ID,
			"to_user_id":  r.ToUserID,
			"to_username": toName,
			"created_at":  r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"requests": resp})
}

type RespondFriendRequestRequest struct {
	FromUserID string `json:"fromUserId" binding:"required"`
}

// Accept 接受好友请求：建立好友边并通知发起方
func (h *FriendHandler) Accept(c *gin.Context) {
	h.respond(c, true)
}

// Decline 拒绝好友请求并通知发起方
func (h *FriendHandler) Decline(c *gin.Context) {
	h.respond(c, false)
}

func (h *FriendHandler) respond(c *gin.Context, accept bool) {
	currentUserID := c.GetString("user_id")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}
	var req RespondFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体格式错误"})
		return
	}

	var fr models.FriendRequest
	if err := h.db.Where("from_user_id = ? AND to_user_id = ? AND status = ?",
		req.FromUserID, currentUserID, models.FriendRequestPending).First(&fr).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "好友请求不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询好友请求失败"})
		return
	}

	now := time.Now()
	newStatus := models.FriendRequestDeclined
	if accept {
		newStatus = models.FriendRequestAccepted
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&fr).Updates(map[string]interface{}{
			"status":       newStatus,
			"responded_at": &now,
		}).Error; err != nil {
			return err
		}
		if !accept {
			return nil
		}
		a, b := orderedPair(fr.FromUserID, fr.ToUserID)
		return tx.Create(&models.Friendship{
			ID:        uuid.NewString(),
			UserIDA:   a,
			UserIDB:   b,
			CreatedAt: now,
		}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "处理好友请求失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": newStatus})

	event := chat.EventFriendDeclined
	if accept {
		event = chat.EventFriendAccepted
	}
	fromUserID := fr.FromUserID
	notifyAfterResponse(func() {
		h.notifier.SendToUser(fromUserID, event, chat.FriendDecisionPayload{
			FromUserID: fromUserID,
			ToUserID:   currentUserID,
		})
	})
}

// List 好友列表（含用户名与在线无关的基础信息）
func (h *FriendHandler) List(c *gin.Context) {
	currentUserID := c.GetString("user_id")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}
	var edges []models.Friendship
	if err := h.db.Where("user_id_a = ? OR user_id_b = ?", currentUserID, currentUserID).
		Find(&edges).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询好友关系失败"})
		return
	}
	if len(edges) == 0 {
		c.JSON(http.StatusOK, gin.H{"friends": []interface{}{}})
		return
	}
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		other := e.UserIDA
		if other == currentUserID {
			other = e.UserIDB
		}
		ids = append(ids, other)
	}
	var users []models.User
	if err := h.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询好友信息失败"})
		return
	}
	resp := make([]gin.H, 0, len(users))
	for _, u := range users {
		resp = append(resp, gin.H{
			"id":       u.ID,
			"username": u.Username,
			"status":   u.Status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"friends": resp})
}

type DeleteFriendRequest struct {
	FriendUserID string `json:"friendUserId" binding:"required"`
}

// Delete 删除好友（双向边一并移除，不通知对方）
func (h *FriendHandler) Delete(c *gin.Context) {
	currentUserID := c.GetString("user_id")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}
	var req DeleteFriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体格式错误"})
		return
	}
	a, b := orderedPair(currentUserID, req.FriendUserID)
	result := h.db.Where("user_id_a = ? AND user_id_b = ?", a, b).Delete(&models.Friendship{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除好友失败"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "好友关系不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "好友已删除"})
}
