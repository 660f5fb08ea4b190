package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"otr_messaging/internal/model"
	"otr_messaging/internal/storage"
)

func stores(t *testing.T) map[string]storage.Store {
	t.Helper()

	bolt, err := storage.OpenBolt(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })

	return map[string]storage.Store{
		"memory": storage.NewMemoryStore(),
		"bolt":   bolt,
	}
}

func event(id model.EventID, topic model.TopicID, createdAt time.Time, text string) model.StoredEvent {
	return model.StoredEvent{
		EventID:     id,
		CreatedAt:   createdAt,
		SendingUser: "alice",
		Type:        model.MessageTypeText,
		Message:     model.NewTextMessage(topic, text),
	}
}

func TestPutEventsReportsFresh(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Millisecond)

			fresh, err := store.PutEvents(ctx, []model.StoredEvent{
				event("e1", "topic-1", now, "one"),
				event("e2", "topic-1", now, "two"),
			})
			require.NoError(t, err)
			require.ElementsMatch(t, []model.EventID{"e1", "e2"}, fresh)

			// e2 redelivered, e3 new
			fresh, err = store.PutEvents(ctx, []model.StoredEvent{
				event("e2", "topic-1", now, "two"),
				event("e3", "topic-1", now, "three"),
			})
			require.NoError(t, err)
			require.Equal(t, []model.EventID{"e3"}, fresh)

			got, err := store.GetEvent(ctx, "e2")
			require.NoError(t, err)
			require.NotNil(t, got)
			require.Equal(t, "two", got.Message.Text.Text)
		})
	}
}

func TestGetEventMissing(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := store.GetEvent(context.Background(), "nope")
			require.NoError(t, err)
			require.Nil(t, got)
		})
	}
}

func TestListTopicEventsSortedAndScoped(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().UTC().Truncate(time.Millisecond)

			_, err := store.PutEvents(ctx, []model.StoredEvent{
				event("e2", "topic-1", base.Add(2*time.Second), "later"),
				event("e1", "topic-1", base, "earlier"),
				event("e9", "topic-2", base.Add(time.Second), "elsewhere"),
			})
			require.NoError(t, err)

			events, err := store.ListTopicEvents(ctx, "topic-1")
			require.NoError(t, err)
			require.Len(t, events, 2)
			require.Equal(t, model.EventID("e1"), events[0].EventID)
			require.Equal(t, model.EventID("e2"), events[1].EventID)
		})
	}
}

func TestAssetDecryptionKeyIndex(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			missing, err := store.GetAssetDecryptionKey(ctx, "asset-1")
			require.NoError(t, err)
			require.Nil(t, missing)

			require.NoError(t, store.PutAssetDecryptionKeys(ctx, []model.AssetDecryptionKey{
				{AssetID: "asset-1", Key: []byte{1}, SHA256: []byte{2}},
			}))

			key, err := store.GetAssetDecryptionKey(ctx, "asset-1")
			require.NoError(t, err)
			require.NotNil(t, key)
			require.Equal(t, []byte{1}, key.Key)
		})
	}
}

func TestUserDetails(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			missing, err := store.GetUser(ctx, "bob")
			require.NoError(t, err)
			require.Nil(t, missing)

			require.NoError(t, store.PutUser(ctx, model.UserDetail{UserID: "bob", Name: "Bob"}))

			user, err := store.GetUser(ctx, "bob")
			require.NoError(t, err)
			require.NotNil(t, user)
			require.Equal(t, "Bob", user.Name)
		})
	}
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.db")
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	store, err := storage.OpenBolt(path)
	require.NoError(t, err)
	_, err = store.PutEvents(ctx, []model.StoredEvent{event("e1", "topic-1", now, "durable")})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := storage.OpenBolt(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetEvent(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "durable", got.Message.Text.Text)
}

func TestMemoryAssetCache(t *testing.T) {
	cache := storage.NewMemoryAssetCache()
	ctx := context.Background()

	missing, err := cache.GetAssetCache(ctx, "asset-1")
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, cache.PutAssetCache(ctx, "asset-1", []byte("payload")))
	got, err := cache.GetAssetCache(ctx, "asset-1")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)
}
