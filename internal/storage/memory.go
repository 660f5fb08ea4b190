package storage

import (
	"context"
	"sort"
	"sync"

	"otr_messaging/internal/model"
)

// MemoryStore is the in-memory Store, used in tests and throwaway clients.
type MemoryStore struct {
	mu        sync.Mutex
	events    map[model.EventID]model.StoredEvent
	assetKeys map[model.AssetID]model.AssetDecryptionKey
	users     map[model.UserID]model.UserDetail
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:    make(map[model.EventID]model.StoredEvent),
		assetKeys: make(map[model.AssetID]model.AssetDecryptionKey),
		users:     make(map[model.UserID]model.UserDetail),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) GetEvent(_ context.Context, id model.EventID) (*model.StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	return &event, nil
}

func (s *MemoryStore) PutEvents(_ context.Context, events []model.StoredEvent) ([]model.EventID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var fresh []model.EventID
	for _, event := range events {
		if _, ok := s.events[event.EventID]; !ok {
			fresh = append(fresh, event.EventID)
		}
		s.events[event.EventID] = event
	}
	return fresh, nil
}

func (s *MemoryStore) ListTopicEvents(_ context.Context, topicID model.TopicID) ([]model.StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var events []model.StoredEvent
	for _, event := range s.events {
		if event.Message.TopicID == topicID {
			events = append(events, event)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}

func (s *MemoryStore) GetAssetDecryptionKey(_ context.Context, id model.AssetID) (*model.AssetDecryptionKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.assetKeys[id]
	if !ok {
		return nil, nil
	}
	return &key, nil
}

func (s *MemoryStore) PutAssetDecryptionKeys(_ context.Context, keys []model.AssetDecryptionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		s.assetKeys[key.AssetID] = key
	}
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id model.UserID) (*model.UserDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (s *MemoryStore) PutUser(_ context.Context, user model.UserDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.UserID] = user
	return nil
}

// MemoryAssetCache is the in-memory AssetCache.
type MemoryAssetCache struct {
	mu     sync.Mutex
	assets map[model.AssetID][]byte
}

func NewMemoryAssetCache() *MemoryAssetCache {
	return &MemoryAssetCache{assets: make(map[model.AssetID][]byte)}
}

var _ AssetCache = (*MemoryAssetCache)(nil)

func (c *MemoryAssetCache) GetAssetCache(_ context.Context, id model.AssetID) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assets[id], nil
}

func (c *MemoryAssetCache) PutAssetCache(_ context.Context, id model.AssetID, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets[id] = payload
	return nil
}
