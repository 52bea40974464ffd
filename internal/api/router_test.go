package api

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"cordchat/internal/chat"
	"cordchat/internal/config"
)

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := chat.NewHub()
	gw := chat.NewGateway(hub, chat.NewMemoryStore(), config.Chat{}.ToSettings(), "secret")
	return SetupRouter(nil, config.AuthSettings{JWTSecret: "secret"}, config.Chat{}.ToSettings(), hub, gw)
}

func TestSetupRouterRegistersAllRoutes(t *testing.T) {
	r := newTestEngine(t)

	registered := make(map[string]bool)
	for _, route := range r.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	expected := []string{
		"POST /api/auth/register",
		"POST /api/auth/login",
		"POST /api/auth/refresh",
		"POST /api/auth/logout",
		"GET /api/rooms",
		"POST /api/rooms",
		"GET /api/rooms/:room_id",
		"GET /api/friends",
		"POST /api/friends/request",
		"GET /api/friends/requests/incoming",
		"GET /api/friends/requests/sent",
		"POST /api/friends/requests/accept",
		"POST /api/friends/requests/decline",
		"POST /api/friends/delete",
		"POST /api/servers",
		"GET /api/servers/my",
		"GET /api/servers/:server_id/channels",
		"POST /api/servers/:server_id/channels",
		"POST /api/servers/:server_id/invites",
		"GET /api/invites",
		"POST /api/invites/:invite_id/accept",
		"POST /api/invites/:invite_id/decline",
		"POST /api/dms",
		"GET /api/dms",
		"GET /api/dms/:dm_id/messages",
		"POST /api/channels/:channel_id/messages",
		"PATCH /api/messages/:message_id",
		"DELETE /api/messages/:message_id",
		"GET /api/messages/history/latest",
		"GET /api/messages/history/before",
		"GET /api/messages/history/after",
		"GET /api/users/search",
		"GET /api/users/:user_id",
		"GET /ws",
	}
	for _, route := range expected {
		require.True(t, registered[route], "缺少路由: %s", route)
	}
}

func TestSetupRouterRequiresHubAndGateway(t *testing.T) {
	gin.SetMode(gin.TestMode)
	require.Panics(t, func() {
		SetupRouter(nil, config.AuthSettings{}, config.Chat{}.ToSettings(), nil, nil)
	})
}
