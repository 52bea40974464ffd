package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cordchat/internal/models"
)

type DMHandler struct {
	db           *gorm.DB
	historyLimit int
}

func NewDMHandler(db *gorm.DB, historyLimit int) *DMHandler {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &DMHandler{db: db, historyLimit: historyLimit}
}

type CreateDMRequest struct {
	TargetUserID string `json:"targetUserId" binding:"required"`
}

// CreateOrGet 为一对用户建立私聊；已存在时返回现有会话
func (h *DMHandler) CreateOrGet(c *gin.Context) {
	currentUserID := c.GetString("user_id")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}
	var req CreateDMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体格式错误"})
		return
	}
	if req.TargetUserID == currentUserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "不能与自己建立私聊"})
		return
	}
	var target models.User
	if err := h.db.Where("id = ?", req.TargetUserID).First(&target).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "目标用户不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询用户失败"})
		return
	}

	// 先查已有会话：两人同时是参与者的 DM
	var existingID int64
	row := h.db.Model(&models.DMParticipant{}).
		Select("dm_participants.dm_id").
		Joins("JOIN dm_participants p2 ON p2.dm_id = dm_participants.dm_id AND p2.user_id = ?", req.TargetUserID).
		Where("dm_participants.user_id = ?", currentUserID).
		Limit(1).
		Row()
	if row != nil {
		if err := row.Scan(&existingID); err == nil && existingID > 0 {
			c.JSON(http.StatusOK, gin.H{"dm": gin.H{"id": existingID, "existing": true}})
			return
		}
	}

	now := time.Now()
	dm := models.DM{CreatedAt: now, UpdatedAt: now}
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&dm).Error; err != nil {
			return err
		}
		return tx.Create([]models.DMParticipant{
			{DMID: dm.ID, UserID: currentUserID},
			{DMID: dm.ID, UserID: req.TargetUserID},
		}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建私聊失败"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"dm": gin.H{"id": dm.ID, "existing": false}})
}

// ListMine 我的私聊列表，按最后活动时间倒序，附带对端信息
func (h *DMHandler) ListMine(c *gin.Context) {
	currentUserID := c.GetString("user_id")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}
	var mine []models.DMParticipant
	if err := h.db.Where("user_id = ?", currentUserID).Find(&mine).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询私聊失败"})
		return
	}
	if len(mine) == 0 {
		c.JSON(http.StatusOK, gin.H{"dms": []interface{}{}})
		return
	}
	ids := make([]int64, 0, len(mine))
	for _, p := range mine {
		ids = append(ids, p.DMID)
	}
	var dms []models.DM
	if err := h.db.Where("id IN ?", ids).Order("updated_at DESC").Find(&dms).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询私聊失败"})
		return
	}
	var others []models.DMParticipant
	if err := h.db.Preload("User").
		Where("dm_id IN ? AND user_id != ?", ids, currentUserID).
		Find(&others).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询私聊对端失败"})
		return
	}
	otherByDM := make(map[int64]models.DMParticipant, len(others))
	for _, p := range others {
		otherByDM[p.DMID] = p
	}

	resp := make([]gin.H, 0, len(dms))
	for _, dm := range dms {
		entry := gin.H{
			"id":         dm.ID,
			"updated_at": dm.UpdatedAt,
		}
		if other, ok := otherByDM[dm.ID]; ok && other.User != nil {
			entry["other_user"] = gin.H{
				"id":       other.User.ID,
				"username": other.User.Username,
			}
		}
		resp = append(resp, entry)
	}
	c.JSON(http.StatusOK, gin.H{"dms": resp})
}

// History 私聊历史，时间正序，限定参与者可见
func (h *DMHandler) History(c *gin.Context) {
	currentUserID := c.GetString("user_id")
	if currentUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}
	dmID, err := strconv.ParseInt(c.Param("dm_id"), 10, 64)
	if err != nil || dmID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "私聊ID格式错误"})
		return
	}

	var mine int64
	if err := h.db.Model(&models.DMParticipant{}).
		Where("dm_id = ? AND user_id = ?", dmID, currentUserID).
		Count(&mine).Error; err != nil || mine == 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": "您不是该私聊的参与者"})
		return
	}

	limit := h.historyLimit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	var msgs []models.DMMessage
	if err := h.db.Preload("User").
		Where("dm_id = ?", dmID).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询私聊历史失败"})
		return
	}

	// 倒序取最近 N 条后翻回正序返回
	resp := make([]gin.H, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		username := ""
		if m.User != nil {
			username = m.User.Username
		}
		resp = append(resp, gin.H{
			"id":         m.ID,
			"dm_id":      m.DMID,
			"user_id":    m.UserID,
			"username":   username,
			"message":    m.Content,
			"created_at": m.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": resp})
}
