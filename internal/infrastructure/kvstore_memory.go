package infrastructure

import (
	"context"
	"sync"

	"perfhub/pkg/logger"
)

// MemoryStore keeps values in process memory. Values are copied on the way
// in and out so callers never share a buffer with the store.
type MemoryStore struct {
	data   map[string][]byte
	mutex  sync.RWMutex
	logger *logger.Logger
}

func NewMemoryStore(logger *logger.Logger) *MemoryStore {
	return &MemoryStore{
		data:   make(map[string][]byte),
		logger: logger,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.data[key] = append([]byte(nil), value...)

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"key":   key,
		"bytes": len(value),
	}).Debug("Stored value in memory")
	return nil
}
