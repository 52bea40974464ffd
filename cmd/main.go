package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"cordchat/internal/api"
	"cordchat/internal/chat"
	"cordchat/internal/config"
	database "cordchat/internal/server/db"
)

func main() {
	// 加载配置
	cfg, err := config.LoadDefault()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 初始化数据库连接（使用 server/db 包）
	db, err := database.OpenGorm(cfg.Database)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}
	// 基础检查底层连接可用
	if sqlDB, err := db.DB(); err != nil {
		log.Fatalf("获取底层连接失败: %v", err)
	} else if err := sqlDB.Ping(); err != nil {
		log.Fatalf("数据库不可用: %v", err)
	}

	// 自动迁移数据库结构
	log.Println("正在检查并迁移数据库结构...")
	if err := database.Migrate(db); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	log.Println("数据库迁移完成")

	authCfg := cfg.Auth.ToSettings()
	chatCfg := cfg.Chat.ToSettings()

	// 实时核心：中枢 + WebSocket 网关，显式构造后注入路由
	hub := chat.NewHub()
	gateway := chat.NewGateway(hub, chat.NewGormStore(db), chatCfg, authCfg.JWTSecret)

	r := api.SetupRouter(db, authCfg, chatCfg, hub, gateway)

	// 简单首页/健康检查（便于开发验证）
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "service": "cordchat"})
	})

	// 启动服务
	addr := ":8080"
	log.Printf("HTTP 服务器已启动: http://localhost%v", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Gin 启动失败: %v", err)
	}
}
