package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// newAuthedJSONContext 构造带登录身份与 JSON 请求体的测试上下文
func newAuthedJSONContext(t *testing.T, method, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("user_id", "u1")
	c.Set("username", "mina")
	return c, w
}

func TestCreateMessageRejectsEmptyBody(t *testing.T) {
	h := NewMessageHandler(nil, 50)

	c, w := newAuthedJSONContext(t, http.MethodPost, `{"content":"   "}`)
	h.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newAuthedJSONContext(t, http.MethodPost, `{}`)
	h.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateMessageRequiresLogin(t *testing.T) {
	h := NewMessageHandler(nil, 50)
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"content":"hi"}`))

	h.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEditMessageRejectsEmptyContent(t *testing.T) {
	h := NewMessageHandler(nil, 50)
	c, w := newAuthedJSONContext(t, http.MethodPatch, `{"content":""}`)
	h.Edit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateChannelRejectsEmptyName(t *testing.T) {
	h := &ServerHandler{db: nil, notifier: nopNotifier{}}
	c, w := newAuthedJSONContext(t, http.MethodPost, `{"name":"  "}`)
	h.CreateChannel(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
