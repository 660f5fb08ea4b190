package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/redis/go-redis/v9"

	"otr_messaging/internal/api"
	"otr_messaging/internal/model"
)

// Per-recipient event queues and asset blobs live in redis. Events stay in
// the queue; a per-client cursor marks how far the client has read, so one
// GetEvents page advances the cursor and the next request continues there.

const defaultPageLimit = 100

func eventsKey(id model.ClientID) string {
	return fmt.Sprintf("events:%s", id)
}

func cursorKey(id model.ClientID) string {
	return fmt.Sprintf("events-cursor:%s", id)
}

func assetKey(id model.AssetID) string {
	return fmt.Sprintf("asset:%s", id)
}

func (s *Server) pushEvent(ctx context.Context, recipient model.ClientID, event model.EncryptedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.rdb.RPush(ctx, eventsKey(recipient), data).Err()
}

func (s *Server) fetchEvents(ctx context.Context, clientID model.ClientID, rawLimit string) (*api.EventsPage, error) {
	limit := defaultPageLimit
	if rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("bad limit %q", rawLimit)
		}
		limit = parsed
	}

	cursor, err := s.rdb.Get(ctx, cursorKey(clientID)).Int64()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	values, err := s.rdb.LRange(ctx, eventsKey(clientID), cursor, cursor+int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}

	page := &api.EventsPage{Events: make([]model.EncryptedEvent, 0, len(values))}
	for _, value := range values {
		var event model.EncryptedEvent
		if err := json.Unmarshal([]byte(value), &event); err != nil {
			return nil, err
		}
		page.Events = append(page.Events, event)
	}

	total, err := s.rdb.LLen(ctx, eventsKey(clientID)).Result()
	if err != nil {
		return nil, err
	}
	cursor += int64(len(values))
	page.HasMore = total > cursor

	if err := s.rdb.Set(ctx, cursorKey(clientID), cursor, 0).Err(); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *Server) putAsset(ctx context.Context, id model.AssetID, r io.Reader) error {
	cipherText, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, assetKey(id), cipherText, 0).Err()
}

func (s *Server) getAsset(ctx context.Context, id model.AssetID) ([]byte, error) {
	cipherText, err := s.rdb.Get(ctx, assetKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cipherText, nil
}
