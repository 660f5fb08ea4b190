package storage

import (
	"context"

	"otr_messaging/internal/model"
)

type (
	// Store is the durable local store for decrypted events, the asset
	// decryption-key index and cached user details.
	//
	// PutEvents is idempotent on EventID: an event stored twice overwrites
	// (latest content wins) and never duplicates. It reports which of the
	// given IDs were not present before, so callers can tell fresh events
	// from re-deliveries.
	Store interface {
		GetEvent(ctx context.Context, id model.EventID) (*model.StoredEvent, error)
		PutEvents(ctx context.Context, events []model.StoredEvent) (fresh []model.EventID, err error)
		ListTopicEvents(ctx context.Context, topicID model.TopicID) ([]model.StoredEvent, error)

		GetAssetDecryptionKey(ctx context.Context, id model.AssetID) (*model.AssetDecryptionKey, error)
		PutAssetDecryptionKeys(ctx context.Context, keys []model.AssetDecryptionKey) error

		GetUser(ctx context.Context, id model.UserID) (*model.UserDetail, error)
		PutUser(ctx context.Context, user model.UserDetail) error
	}

	// AssetCache holds decrypted asset payloads keyed by asset ID.
	// Get returns (nil, nil) on a miss.
	AssetCache interface {
		GetAssetCache(ctx context.Context, id model.AssetID) ([]byte, error)
		PutAssetCache(ctx context.Context, id model.AssetID, payload []byte) error
	}
)
