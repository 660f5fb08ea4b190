package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"

	"otr_messaging/internal/model"
)

// BoltStore is the durable on-device Store backed by a bbolt file.
type BoltStore struct {
	db *bolt.DB
}

var (
	bucketEvents    = []byte("events")
	bucketAssetKeys = []byte("assetKeys")
	bucketUsers     = []byte("usersData")
)

// OpenBolt opens (or creates) the store file and its buckets.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("bolt.Open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketEvents, bucketAssetKeys, bucketUsers} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

var _ Store = (*BoltStore)(nil)

func (s *BoltStore) GetEvent(_ context.Context, id model.EventID) (*model.StoredEvent, error) {
	var event *model.StoredEvent
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketEvents).Get([]byte(id))
		if data == nil {
			return nil
		}
		event = &model.StoredEvent{}
		return json.Unmarshal(data, event)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (s *BoltStore) PutEvents(_ context.Context, events []model.StoredEvent) ([]model.EventID, error) {
	var fresh []model.EventID
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEvents)
		for _, event := range events {
			key := []byte(event.EventID)
			if bucket.Get(key) == nil {
				fresh = append(fresh, event.EventID)
			}
			data, err := json.Marshal(event)
			if err != nil {
				return err
			}
			if err := bucket.Put(key, data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

func (s *BoltStore) ListTopicEvents(_ context.Context, topicID model.TopicID) ([]model.StoredEvent, error) {
	var events []model.StoredEvent
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(_, data []byte) error {
			var event model.StoredEvent
			if err := json.Unmarshal(data, &event); err != nil {
				return err
			}
			if event.Message.TopicID == topicID {
				events = append(events, event)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}

func (s *BoltStore) GetAssetDecryptionKey(_ context.Context, id model.AssetID) (*model.AssetDecryptionKey, error) {
	var key *model.AssetDecryptionKey
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketAssetKeys).Get([]byte(id))
		if data == nil {
			return nil
		}
		key = &model.AssetDecryptionKey{}
		return json.Unmarshal(data, key)
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

func (s *BoltStore) PutAssetDecryptionKeys(_ context.Context, keys []model.AssetDecryptionKey) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketAssetKeys)
		for _, key := range keys {
			data, err := json.Marshal(key)
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte(key.AssetID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) GetUser(_ context.Context, id model.UserID) (*model.UserDetail, error) {
	var user *model.UserDetail
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get([]byte(id))
		if data == nil {
			return nil
		}
		user = &model.UserDetail{}
		return json.Unmarshal(data, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *BoltStore) PutUser(_ context.Context, user model.UserDetail) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(user)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketUsers).Put([]byte(user.UserID), data)
	})
}
