package chat

import "sync"

// Registry 在线表：用户ID → 该用户所有活跃连接（支持多端同时在线）
// 不持久化：在线状态与活跃连接同生共死，进程重启后由客户端重连重建
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[string]*Client // userID -> connID -> client
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[string]map[string]*Client)}
}

// Register 将连接记入用户的在线集合；重复注册同一连接是幂等的（集合语义）
func (r *Registry) Register(c *Client) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.users[c.UserID()]
	if !ok {
		set = make(map[string]*Client)
		r.users[c.UserID()] = set
	}
	set[c.ID()] = c
}

// Unregister 将连接从用户的在线集合移除；移除最后一条连接时整个条目删除
// 绝不留下空集合：userID 在表中出现 当且仅当 其连接集合非空
func (r *Registry) Unregister(c *Client) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.users[c.UserID()]
	if !ok {
		return
	}
	delete(set, c.ID())
	if len(set) == 0 {
		delete(r.users, c.UserID())
	}
}

// IsOnline 用户是否有至少一条活跃连接
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok
}

// ConnectionsOf 返回该用户当前全部活跃连接的快照；离线返回空切片而非错误
func (r *Registry) ConnectionsOf(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.users[userID]
	out := make([]*Client, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// OnlineUserCount 当前在线用户数（按用户去重，不按连接数）
func (r *Registry) OnlineUserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
