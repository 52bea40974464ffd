package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore 内存版 ChatStore，用于测试与本地联调
type MemoryStore struct {
	mu           sync.RWMutex
	rooms        map[string]string          // roomID -> name
	participants map[int64]map[string]bool  // dmID -> 参与者集合
	messages     map[int64][]DMMessageRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:        make(map[string]string),
		participants: make(map[int64]map[string]bool),
		messages:     make(map[int64][]DMMessageRecord),
	}
}

var _ ChatStore = (*MemoryStore)(nil)

// AddRoom 预置一个房间
func (s *MemoryStore) AddRoom(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[id] = name
}

// AddDM 预置一个 DM 及其参与者
func (s *MemoryStore) AddDM(dmID int64, userIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.participants[dmID]
	if !ok {
		set = make(map[string]bool)
		s.participants[dmID] = set
	}
	for _, uid := range userIDs {
		set[uid] = true
	}
}

// Messages 某 DM 已落库消息的快照
func (s *MemoryStore) Messages(dmID int64) []DMMessageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DMMessageRecord, len(s.messages[dmID]))
	copy(out, s.messages[dmID])
	return out
}

func (s *MemoryStore) RoomInfo(roomID string) (RoomInfoPayload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.rooms[roomID]
	if !ok {
		return RoomInfoPayload{}, ErrRoomNotFound
	}
	return RoomInfoPayload{ID: roomID, Name: name}, nil
}

func (s *MemoryStore) IsDMParticipant(dmID int64, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.participants[dmID][userID], nil
}

func (s *MemoryStore) AppendDMMessage(dmID int64, userID, content string) (DMMessageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := DMMessageRecord{
		ID:        uuid.NewString(),
		DMID:      dmID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	s.messages[dmID] = append(s.messages[dmID], rec)
	return rec, nil
}
