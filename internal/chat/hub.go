package chat

import (
	"log"
	"sync"
)

// Hub 广播路由中枢：管理全部活跃连接、房间成员关系与在线表
// 进程启动时显式构造一次，通过依赖注入传给网关与 HTTP 处理器，不做包级单例
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]bool            // 所有活跃连接
	rooms    map[string]map[*Client]bool // 房间ID → 房间内的连接集合
	registry *Registry                   // 在线表
}

func NewHub() *Hub {
	return &Hub{
		clients:  make(map[*Client]bool),
		rooms:    make(map[string]map[*Client]bool),
		registry: NewRegistry(),
	}
}

// Registry 暴露在线表（只读用途，如在线状态查询）
func (h *Hub) Registry() *Registry { return h.registry }

// Register 连接完成认证后登记：加入全局集合并记入在线表
func (h *Hub) Register(c *Client) {
	if c == nil {
		return
	}
	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()

	h.registry.Register(c)
	log.Printf("连接已注册 connID=%s userID=%s 当前连接数=%d", c.ID(), c.UserID(), total)
}

// Unregister 连接断开时的统一清理：退出所有房间、移出在线表、触发关停
// 立即且无条件，不做在途消息排空（投递本就是尽力而为）
func (h *Hub) Unregister(c *Client) {
	if c == nil {
		return
	}
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for roomID := range c.rooms {
		if members, ok := h.rooms[roomID]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	c.rooms = make(map[string]bool)
	total := len(h.clients)
	h.mu.Unlock()

	h.registry.Unregister(c)
	c.Close()
	log.Printf("连接已注销 connID=%s userID=%s 当前连接数=%d", c.ID(), c.UserID(), total)
}

// JoinRoom 将连接加入房间；房间在首次加入时隐式出现
// 一条连接可以同时加入多个房间
func (h *Hub) JoinRoom(c *Client, roomID string) {
	if c == nil || roomID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[roomID] = members
	}
	members[c] = true
	c.rooms[roomID] = true
}

// LeaveRoom 将连接移出房间；最后一个成员离开后房间条目删除
// （零成员的房间与不存在的房间不可区分）
func (h *Hub) LeaveRoom(c *Client, roomID string) {
	if c == nil || roomID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(c.rooms, roomID)
	if members, ok := h.rooms[roomID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// InRoom 连接当前是否在指定房间内
func (h *Hub) InRoom(c *Client, roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members, ok := h.rooms[roomID]
	return ok && members[c]
}

// roomSnapshot 房间成员快照，避免在持锁状态下投递
func (h *Hub) roomSnapshot(roomID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.rooms[roomID]
	out := make([]*Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

// SendTo 向单条连接投递事件；队列满或连接关停时丢弃
func (h *Hub) SendTo(c *Client, event string, data any) bool {
	if c == nil {
		return false
	}
	msg, err := EncodeEnvelope(event, data)
	if err != nil {
		log.Printf("编码出站事件失败 event=%s: %v", event, err)
		return false
	}
	if !c.enqueue(msg) {
		log.Printf("出站队列已满，丢弃消息 connID=%s event=%s", c.ID(), event)
		return false
	}
	return true
}

// BroadcastToRoom 向房间内全部连接投递事件，except 非空时排除该连接
// 返回成功入队的连接数；同一调用内的投递顺序即发出顺序
func (h *Hub) BroadcastToRoom(roomID, event string, data any, except *Client) int {
	msg, err := EncodeEnvelope(event, data)
	if err != nil {
		log.Printf("编码出站事件失败 event=%s: %v", event, err)
		return 0
	}
	delivered := 0
	for _, c := range h.roomSnapshot(roomID) {
		if except != nil && c == except {
			continue
		}
		if c.enqueue(msg) {
			delivered++
		} else {
			log.Printf("出站队列已满，丢弃房间广播 connID=%s room=%s event=%s", c.ID(), roomID, event)
		}
	}
	return delivered
}

// BroadcastAll 向全部活跃连接投递事件（如房间创建通知）
func (h *Hub) BroadcastAll(event string, data any) int {
	msg, err := EncodeEnvelope(event, data)
	if err != nil {
		log.Printf("编码出站事件失败 event=%s: %v", event, err)
		return 0
	}
	h.mu.RLock()
	snapshot := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range snapshot {
		if c.enqueue(msg) {
			delivered++
		}
	}
	return delivered
}

// SendToUser 向某用户当前全部在线连接点对点投递
// 用户离线时静默返回 0：通知不排队、不重试，只达及此刻在线的连接
func (h *Hub) SendToUser(userID, event string, data any) int {
	msg, err := EncodeEnvelope(event, data)
	if err != nil {
		log.Printf("编码出站事件失败 event=%s: %v", event, err)
		return 0
	}
	delivered := 0
	for _, c := range h.registry.ConnectionsOf(userID) {
		if c.enqueue(msg) {
			delivered++
		} else {
			log.Printf("出站队列已满，丢弃用户通知 connID=%s userID=%s event=%s", c.ID(), userID, event)
		}
	}
	return delivered
}
