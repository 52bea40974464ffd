package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cordchat/internal/models"
)

type UserHandler struct {
	db *gorm.DB
}

func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// Search 按用户名模糊搜索用户
func (h *UserHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusOK, gin.H{"users": []interface{}{}})
		return
	}
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	var users []models.User
	if err := h.db.Where("username LIKE ?", "%"+q+"%").
		Order("username ASC").
		Limit(limit).
		Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "搜索用户失败"})
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
	c.JSON(http.StatusOK, gin.H{"users": resp})
}

// Get 按ID查询用户的公开信息
func (h *UserHandler) Get(c *gin.Context) {
	var u models.User
	if err := h.db.Where("id = ?", c.Param("user_id")).First(&u).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "用户不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询用户失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": gin.H{
		"id":       u.ID,
		"username": u.Username,
	}})
}
