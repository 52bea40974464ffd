package chat

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait       = 60 * time.Second    // 客户端在该时间内没有响应心跳，则认为连接断开
	pingPeriod     = (pongWait * 9) / 10 // 服务端主动向客户端发送心跳的周期
	writeWait      = 10 * time.Second    // 单次消息发送超时时间
	maxMessageSize = 1024 * 8            // 单条入站消息最大长度
)

// Client 一条活跃的 WebSocket 连接
// 身份在认证握手时绑定，之后不可变；rooms 由 Hub 的锁保护
type Client struct {
	id       string          // 连接ID
	userID   string          // 所属用户ID（游客为 guest）
	username string          // 显示名
	conn     *websocket.Conn // 底层 websocket 连接
	send     chan []byte     // 出站消息队列

	done      chan struct{}
	closeOnce sync.Once

	rooms map[string]bool // 该连接当前加入的房间集合
}

func newClient(conn *websocket.Conn, id, userID, username string, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Client{
		id:       id,
		userID:   userID,
		username: username,
		conn:     conn,
		send:     make(chan []byte, queueSize),
		done:     make(chan struct{}),
		rooms:    make(map[string]bool),
	}
}

func (c *Client) ID() string       { return c.id }
func (c *Client) UserID() string   { return c.userID }
func (c *Client) Username() string { return c.username }

// Done 连接关停信号
func (c *Client) Done() <-chan struct{} { return c.done }

// Close 通知读写协程退出（幂等）
// 不关闭 send 通道，避免并发广播方向已关闭通道写入而崩溃
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// enqueue 非阻塞入队；队列满或连接正在关停时丢弃并返回 false
func (c *Client) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// writePump 出站泵：串行写出队列消息并定期发送心跳
// 每个连接恰好一个写协程，保证单连接内的投递顺序
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("写出消息失败 connID=%s userID=%s: %v", c.id, c.userID, err)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
