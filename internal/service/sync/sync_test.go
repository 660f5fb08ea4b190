package sync_test

import (
	"bytes"
	"context"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"otr_messaging/internal/api"
	"otr_messaging/internal/codec"
	"otr_messaging/internal/model"
	"otr_messaging/internal/service/crypto"
	syncsvc "otr_messaging/internal/service/sync"
	"otr_messaging/internal/session"
	"otr_messaging/internal/storage"
)

var encPrefix = []byte("enc:")

type fakeCipher struct{}

func (fakeCipher) Encrypt(_ context.Context, _ model.SessionID, plaintext []byte, _ *model.Prekey) ([]byte, error) {
	return append(bytes.Clone(encPrefix), plaintext...), nil
}

func (fakeCipher) Decrypt(_ context.Context, _ model.SessionID, payload []byte) ([]byte, error) {
	if !bytes.HasPrefix(payload, encPrefix) {
		return nil, session.ErrDecryption
	}
	return payload[len(encPrefix):], nil
}

func (fakeCipher) DeleteSession(context.Context, model.SessionID) error { return nil }

// fakeBackend serves queued events in fixed-size pages through a read
// cursor, the way the relay does.
type fakeBackend struct {
	api.Client

	mu       stdsync.Mutex
	events   []model.EncryptedEvent
	cursor   int
	pageSize int
	calls    int
}

func (f *fakeBackend) GetEvents(_ context.Context, _ model.ClientID, _ api.EventsFilter) (*api.EventsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	end := f.cursor + f.pageSize
	if end > len(f.events) {
		end = len(f.events)
	}
	page := &api.EventsPage{
		Events:  f.events[f.cursor:end],
		HasMore: end < len(f.events),
	}
	f.cursor = end
	return page, nil
}

func (f *fakeBackend) push(events ...model.EncryptedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
}

func encryptedEvent(t *testing.T, id model.EventID, message model.Message) model.EncryptedEvent {
	t.Helper()
	plainText, err := codec.Encode(message)
	require.NoError(t, err)
	return model.EncryptedEvent{
		EventID:     id,
		CreatedAt:   time.Now().UTC(),
		SendingUser: "peer-user",
		Envelope: model.Envelope{
			SenderClientID:    "peer-client",
			RecipientClientID: "my-client",
			CipherTextPayload: append(bytes.Clone(encPrefix), plainText...),
		},
	}
}

type harness struct {
	backend *fakeBackend
	store   *storage.MemoryStore
	engine  *syncsvc.Engine

	mu       stdsync.Mutex
	notified [][]model.StoredEvent
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		backend: &fakeBackend{pageSize: 2},
		store:   storage.NewMemoryStore(),
	}
	// interval long enough that only explicit Tick calls run
	h.engine = syncsvc.NewEngine("my-client", h.backend, crypto.New(fakeCipher{}), h.store, time.Hour, nil)
	h.engine.Listen(func(events []model.StoredEvent) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.notified = append(h.notified, events)
	})
	t.Cleanup(h.engine.StopListening)
	return h
}

func (h *harness) notifications() [][]model.StoredEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.notified
}

func TestTickPaginatesAndNotifiesOnce(t *testing.T) {
	h := newHarness(t)
	for _, id := range []model.EventID{"e1", "e2", "e3", "e4", "e5"} {
		h.backend.push(encryptedEvent(t, id, model.NewTextMessage("topic-1", string(id))))
	}

	require.NoError(t, h.engine.Tick(context.Background()))

	// 5 events at page size 2 means three requests
	require.Equal(t, 3, h.backend.calls)

	notified := h.notifications()
	require.Len(t, notified, 1)
	require.Len(t, notified[0], 5)
	require.Equal(t, model.EventID("e1"), notified[0][0].EventID)
	require.Equal(t, model.EventID("e5"), notified[0][4].EventID)

	stored, err := h.store.ListTopicEvents(context.Background(), "topic-1")
	require.NoError(t, err)
	require.Len(t, stored, 5)
}

func TestTickEmptyQueue(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.engine.Tick(context.Background()))
	require.Empty(t, h.notifications())
}

func TestTickIndexesAssetKeys(t *testing.T) {
	h := newHarness(t)
	h.backend.push(encryptedEvent(t, "e1", model.NewAssetMessage("topic-1", model.AssetContent{
		AssetID:  "asset-1",
		Key:      []byte{1, 2, 3},
		SHA256:   []byte{4, 5, 6},
		Metadata: model.AssetMetadata{FileName: "pic.png"},
	})))

	require.NoError(t, h.engine.Tick(context.Background()))

	key, err := h.store.GetAssetDecryptionKey(context.Background(), "asset-1")
	require.NoError(t, err)
	require.NotNil(t, key)
	require.Equal(t, []byte{1, 2, 3}, key.Key)
	require.Equal(t, []byte{4, 5, 6}, key.SHA256)
}

func TestRedeliveredEventsNotifyOnlyOnce(t *testing.T) {
	h := newHarness(t)
	event := encryptedEvent(t, "e1", model.NewTextMessage("topic-1", "hello"))

	h.backend.push(event)
	require.NoError(t, h.engine.Tick(context.Background()))

	// the server delivers the same event again
	h.backend.push(event)
	require.NoError(t, h.engine.Tick(context.Background()))

	require.Len(t, h.notifications(), 1)

	stored, err := h.store.ListTopicEvents(context.Background(), "topic-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestUndecryptableEventSkipped(t *testing.T) {
	h := newHarness(t)
	h.backend.push(encryptedEvent(t, "e1", model.NewTextMessage("topic-1", "good")))
	h.backend.push(model.EncryptedEvent{
		EventID:     "e2",
		CreatedAt:   time.Now().UTC(),
		SendingUser: "peer-user",
		Envelope: model.Envelope{
			SenderClientID:    "peer-client",
			RecipientClientID: "my-client",
			CipherTextPayload: []byte("\U0001F4A3"),
		},
	})
	h.backend.push(encryptedEvent(t, "e3", model.NewTextMessage("topic-1", "also good")))

	require.NoError(t, h.engine.Tick(context.Background()))

	notified := h.notifications()
	require.Len(t, notified, 1)
	require.Len(t, notified[0], 2)
	require.Equal(t, model.EventID("e1"), notified[0][0].EventID)
	require.Equal(t, model.EventID("e3"), notified[0][1].EventID)
}

func TestLocalEchoThenSyncDoesNotDuplicate(t *testing.T) {
	h := newHarness(t)
	message := model.NewTextMessage("topic-1", "mine")

	// the dispatcher echoes the confirmed send through Ingest
	require.NoError(t, h.engine.Ingest(context.Background(), []model.StoredEvent{{
		EventID:     "e1",
		CreatedAt:   time.Now().UTC(),
		SendingUser: "me",
		Type:        message.Type,
		Message:     message,
	}}))
	require.Len(t, h.notifications(), 1)

	// the next pull returns the server's copy of the same event
	h.backend.push(encryptedEvent(t, "e1", message))
	require.NoError(t, h.engine.Tick(context.Background()))

	require.Len(t, h.notifications(), 1)
}

func TestListenReplacesPreviousListener(t *testing.T) {
	h := newHarness(t)

	var replacedCalls int
	h.engine.Listen(func(events []model.StoredEvent) {
		h.mu.Lock()
		defer h.mu.Unlock()
		replacedCalls++
	})

	h.backend.push(encryptedEvent(t, "e1", model.NewTextMessage("topic-1", "x")))
	require.NoError(t, h.engine.Tick(context.Background()))

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Empty(t, h.notified)
	require.Equal(t, 1, replacedCalls)
}
