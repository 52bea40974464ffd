package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cordchat/internal/api/handler"
	"cordchat/internal/chat"
	"cordchat/internal/config"
	"cordchat/internal/middleware"
)

// SetupRouter 初始化 Gin 路由并装配全部处理器
// hub 与 gateway 在进程启动时显式构造，经此处注入（不做包级单例）
func SetupRouter(db *gorm.DB, authCfg config.AuthSettings, chatCfg config.ChatSettings, hub *chat.Hub, gateway *chat.Gateway) *gin.Engine {
	if hub == nil || gateway == nil {
		panic("api: SetupRouter 需要非空的 Hub 与 Gateway")
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// 静态资源：挂载 web 目录，便于本地验证前端页面
	r.Static("/web", "web")

	api := r.Group("/api")
	requireAuth := middleware.JWTAuth(authCfg.JWTSecret)

	// 认证
	authHandler := handler.NewAuthHandler(db, authCfg)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.POST("/auth/logout", requireAuth, authHandler.Logout)

	// 公共聊天室
	roomHandler := handler.NewRoomHandler(db, hub)
	rooms := api.Group("/rooms", requireAuth)
	rooms.GET("", roomHandler.List)
	rooms.POST("", roomHandler.Create)
	rooms.GET("/:room_id", roomHandler.Get)

	// 好友
	friendHandler := handler.NewFriendHandler(db, hub)
	friends := api.Group("/friends", requireAuth)
	friends.GET("", friendHandler.List)
	friends.POST("/request", friendHandler.SendRequest)
	friends.GET("/requests/incoming", friendHandler.ListIncoming)
	friends.GET("/requests/sent", friendHandler.ListSent)
	friends.POST("/requests/accept", friendHandler.Accept)
	friends.POST("/requests/decline", friendHandler.Decline)
	friends.POST("/delete", friendHandler.Delete)

	// 服务器与邀请
	serverHandler := handler.NewServerHandler(db, hub)
	servers := api.Group("/servers", requireAuth)
	servers.POST("", serverHandler.Create)
	servers.GET("/my", serverHandler.ListMine)
	servers.GET("/:server_id/channels", serverHandler.ListChannels)
	servers.POST("/:server_id/channels", serverHandler.CreateChannel)
	servers.POST("/:server_id/invites", serverHandler.CreateInvite)
	invites := api.Group("/invites", requireAuth)
	invites.GET("", serverHandler.ListInvites)
	invites.POST("/:invite_id/accept", serverHandler.AcceptInvite)
	invites.POST("/:invite_id/decline", serverHandler.DeclineInvite)

	// 私聊
	dmHandler := handler.NewDMHandler(db, chatCfg.HistoryLimit)
	dms := api.Group("/dms", requireAuth)
	dms.POST("", dmHandler.CreateOrGet)
	dms.GET("", dmHandler.ListMine)
	dms.GET("/:dm_id/messages", dmHandler.History)

	// 频道消息：发布 + 历史
	messageHandler := handler.NewMessageHandler(db, chatCfg.HistoryLimit)
	api.POST("/channels/:channel_id/messages", requireAuth, messageHandler.Create)
	api.PATCH("/messages/:message_id", requireAuth, messageHandler.Edit)
	api.DELETE("/messages/:message_id", requireAuth, messageHandler.Delete)
	api.GET("/messages/history/latest", requireAuth, messageHandler.GetLatest)
	api.GET("/messages/history/before", requireAuth, messageHandler.GetHistoryBefore)
	api.GET("/messages/history/after", requireAuth, messageHandler.GetHistoryAfter)

	// 用户查询
	userHandler := handler.NewUserHandler(db)
	users := api.Group("/users", requireAuth)
	users.GET("/search", userHandler.Search)
	users.GET("/:user_id", userHandler.Get)

	// WebSocket 入口：认证策略由网关内部执行（strict/permissive）
	r.GET("/ws", gateway.Handle)

	return r
}
