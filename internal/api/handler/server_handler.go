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

type ServerHandler struct {
	db       *gorm.DB
	notifier Notifier
}

func NewServerHandler(db *gorm.DB, notifier Notifier) *ServerHandler {
	if notifier == nil {
		panic("handler: ServerHandler 需要非空的 Notifier")
	}
	return &ServerHandler{db: db, notifier: notifier}
}

type CreateServerRequest struct {
	Name    string  `json:"name"`
	IconURL *string `json:"icon_url,omitempty"`
}

// Create 创建服务器：建服 + 创建者入驻为 owner + 默认文字频道
func (h *ServerHandler) Create(c *gin.Context) {
	currentUserID := c.GetString("user_id")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}
	var req CreateServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体格式错误"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "服务器名称不能为空"})
		return
	}

	now := time.Now()
	server := models.Server{
		ID:          uuid.NewString(),
		Name:        req.Name,
		IconURL:     req.IconURL,
		OwnerUserID: currentUserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	channel := models.Channel{
		ID:        uuid.NewString(),
		ServerID:  server.ID,
		Name:      "general",
		Type:      "text",
		CreatedAt: now,
	}
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&server).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.ServerMember{
			ServerID: server.ID,
			UserID:   currentUserID,
			Role:     models.MemberRoleOwner,
			JoinedAt: now,
		}).Error; err != nil {
			return err
		}
		return tx.Create(&channel).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建服务器失败"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"server": gin.H{
		"id":         server.ID,
		"name":       server.Name,
		"owner_id":   server.OwnerUserID,
		"created_at": server.CreatedAt,
		"channels":   []gin.H{{"id": channel.ID, "name": channel.Name, "type": channel.Type}},
	}})
}

// ListMine 我加入的服务器列表
func (h *ServerHandler) ListMine(c *gin.Context) {
	currentUserID := c.GetString("user_id")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}
	var memberships []models.ServerMember
	if err := h.db.Where("user_id = ?", currentUserID).Find(&memberships).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询成员关系失败"})
		return
	}
	if len(memberships) == 0 {
		c.JSON(http.StatusOK, gin.H{"servers": []interface{}{}})
		return
	}
	ids := make([]string, 0, len(memberships))
	roleByServer := make(map[string]models.MemberRole, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.ServerID)
		roleByServer[m.ServerID] = m.Role
	}
	var servers []models.Server
	if err := h.db.Where("id IN ?", ids).Find(&servers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询服务器失败"})
		return
	}
	resp := make([]gin.H, 0, len(servers))
	for _, s := range servers {
		var memberCount int64
		if err := h.db.Model(&models.ServerMember{}).Where("server_id = ?", s.ID).Count(&memberCount).Error; err != nil {
			memberCount = 0
		}
		resp = append(resp, gin.H{
			"id":           s.ID,
			"name":         s.Name,
			"icon_url":     s.IconURL,
			"owner_id":     s.OwnerUserID,
			"my_role":      roleByServer[s.ID],
			"member_count": memberCount,
			"created_at":   s.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"servers": resp})
}

// ListChannels 服务器下的频道列表（需为成员）
func (h *ServerHandler) ListChannels(c *gin.Context) {
	currentUserID := c.GetString("user_id")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}
	serverID := c.Param("server_id")
	var me models.ServerMember
	if err := h.db.Where("server_id = ? AND user_id = ?", serverID, currentUserID).First(&me).Error; err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "您不是该服务器成员"})
		return
	}
	var channels []models.Channel
	if err := h.db.Where("server_id = ?", serverID).Order("created_at ASC").Find(&channels).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询频道失败"})
		return
	}
	resp := make([]gin.H, 0, len(channels))
	for _, ch := range channels {
		resp = append(resp, gin.H{
			"id":    ch.ID,
			"name":  ch.Name,
			"type":  ch.Type,
			"topic": ch.Topic,
		})
	}
	c.JSON(http.StatusOK, gin.H{"channels": resp})
}

type CreateInviteRequest struct {
	ToUserID string `json:"toUserId" binding:"required"`
}

// CreateInvite 邀请用户加入服务器；对方在线时实时推送 server-invite
func (h *ServerHandler) CreateInvite(c *gin.Context) {
	currentUserID := c.GetString("user_id")
	currentUsername := c.GetString("username")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}
	serverID := c.Param("server_id")
	var req CreateInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体格式错误"})
		return
	}

	var server models.Server
	if err := h.db.Where("id = ?", serverID).First(&server).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "服务器不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询服务器失败"})
		return
	}
	var me models.ServerMember
	if err := h.db.Where("server_id = ? AND user_id = ?", serverID, currentUserID).First(&me).Error; err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "您不是该服务器成员"})
		return
	}
	var already int64
	if err := h.db.Model(&models.ServerMember{}).
		Where("server_id = ? AND user_id = ?", serverID, req.ToUserID).
		Count(&already).Error; err == nil && already > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "对方已是服务器成员"})
		return
	}

	now := time.Now()
	invite := models.ServerInvite{
		ID:         uuid.NewString(),
		ServerID:   serverID,
		FromUserID: currentUserID,
		ToUserID:   req.ToUserID,
		Status:     models.ServerInvitePending,
		CreatedAt:  now,
	}
	if err := h.db.Create(&invite).Error; err != nil {
		if isDuplicateKeyErr(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "已有待处理的邀请"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建邀请失败"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"invite": gin.H{
		"id":         invite.ID,
		"server_id":  invite.ServerID,
		"to_user_id": invite.ToUserID,
		"status":     invite.Status,
		"created_at": invite.CreatedAt,
	}})

	toUserID := req.ToUserID
	notifyAfterResponse(func() {
		h.notifier.SendToUser(toUserID, chat.EventServerInvite, chat.ServerInvitePayload{
			InviteID:     invite.ID,
			ServerID:     server.ID,
			ServerName:   server.Name,
			FromUserID:   currentUserID,
			FromUsername: currentUsername,
			CreatedAt:    now,
		})
	})
}

// ListInvites 我收到的待处理服务器邀请
func (h *ServerHandler) ListInvites(c *gin.Context) {
	currentUserID := c.GetString("user_id")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}
	var invites []models.ServerInvite
	if err := h.db.Preload("Server").Preload("FromUser").
		Where("to_user_id = ? AND status = ?", currentUserID, models.ServerInvitePending).
		Order("created_at DESC").
		Find(&invites).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询邀请失败"})
		return
	}
	resp := make([]gin.H, 0, len(invites))
	for _, inv := range invites {
		serverName := ""
		if inv.Server != nil {
			serverName = inv.Server.Name
		}
		fromName := ""
		if inv.FromUser != nil {
			fromName = inv.FromUser.Username
		}
		resp = append(resp, gin.H{
			"id":            inv.ID,
			"server_id":     inv.ServerID,
			"server_name":   serverName,
			"from_user_id":  inv.FromUserID,
			"from_username": fromName,
			"created_at":    inv.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"invites": resp})
}

// AcceptInvite 接受邀请：成为成员并通知邀请人
func (h *ServerHandler) AcceptInvite(c *gin.Context) {
	h.respondInvite(c, true)
}

// DeclineInvite 拒绝邀请并通知邀请人
func (h *ServerHandler) DeclineInvite(c *gin.Context) {
	h.respondInvite(c, false)
}

func (h *ServerHandler) respondInvite(c *gin.Context, accept bool) {
	currentUserID := c.GetString("user_id")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}
	inviteID := c.Param("invite_id")

	var invite models.ServerInvite
	if err := h.db.Where("id = ? AND to_user_id = ? AND status = ?",
		inviteID, currentUserID, models.ServerInvitePending).First(&invite).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "邀请不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询邀请失败"})
		return
	}

	now := time.Now()
	newStatus := models.ServerInviteDeclined
	if accept {
		newStatus = models.ServerInviteAccepted
	}
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&invite).Updates(map[string]interface{}{
			"status":       newStatus,
			"responded_at": &now,
		}).Error; err != nil {
			return err
		}
		if !accept {
			return nil
		}
		return tx.Create(&models.ServerMember{
			ServerID: invite.ServerID,
			UserID:   currentUserID,
			Role:     models.MemberRoleMember,
			JoinedAt: now,
		}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "处理邀请失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": newStatus})

	event := chat.EventServerInviteDeclined
	if accept {
		event = chat.EventServerInviteAccepted
	}
	notifyAfterResponse(func() {
		h.notifier.SendToUser(invite.FromUserID, event, chat.ServerInviteDecisionPayload{
			InviteID: invite.ID,
			ServerID: invite.ServerID,
			ToUserID: currentUserID,
		})
	})
}

type CreateChannelRequest struct {
	Name  string  `json:"name"`
	Type  string  `json:"type"`
	Topic *string `json:"topic,omitempty"`
}

// CreateChannel 在服务器下新建频道（需为成员）
func (h *ServerHandler) CreateChannel(c *gin.Context) {
	currentUserID := c.GetString("user_id")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}
	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体格式错误"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "频道名称不能为空"})
		return
	}
	if req.Type == "" {
		req.Type = "text"
	}

	serverID := c.Param("server_id")
	var me models.ServerMember
	if err := h.db.Where("server_id = ? AND user_id = ?", serverID, currentUserID).First(&me).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusForbidden, gin.H{"error": "您不是该服务器成员"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询成员关系失败"})
		return
	}

	channel := models.Channel{
		ID:        uuid.NewString(),
		ServerID:  serverID,
		Name:      req.Name,
		Type:      req.Type,
		Topic:     req.Topic,
		CreatedAt: time.Now(),
	}
	if err := h.db.Create(&channel).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建频道失败"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"channel": gin.H{
		"id":        channel.ID,
		"server_id": channel.ServerID,
		"name":      channel.Name,
		"type":      channel.Type,
		"topic":     channel.Topic,
	}})
}
