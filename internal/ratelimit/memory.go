package ratelimit

import (
	"sync"
)

// MemoryStore 进程内限流状态存储
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]WindowState
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]WindowState),
	}
}

func (s *MemoryStore) Get(key string) (WindowState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.records[key]
	return state, ok, nil
}

func (s *MemoryStore) Set(key string, state WindowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = state
	return nil
}

// Len 当前记录数
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Clear 清空所有记录（仅用于测试）
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]WindowState)
}
