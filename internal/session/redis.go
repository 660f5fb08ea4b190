package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"otr_messaging/internal/model"
)

// RedisStateStore keeps session state in redis as JSON with a TTL, so an
// idle session eventually expires and the next contact re-handshakes.
type RedisStateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStateStore(rdb *redis.Client, ttl time.Duration) *RedisStateStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisStateStore{rdb: rdb, ttl: ttl}
}

var _ StateStore = (*RedisStateStore)(nil)

func stateKey(id model.SessionID) string {
	return fmt.Sprintf("session-state:%s", id)
}

func (s *RedisStateStore) Load(ctx context.Context, id model.SessionID) (*State, error) {
	v, err := s.rdb.Get(ctx, stateKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var st State
	if err := json.Unmarshal([]byte(v), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *RedisStateStore) Save(ctx context.Context, id model.SessionID, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, stateKey(id), data, s.ttl).Err()
}

func (s *RedisStateStore) Delete(ctx context.Context, id model.SessionID) error {
	return s.rdb.Del(ctx, stateKey(id)).Err()
}
