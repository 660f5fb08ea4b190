package otr

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"otr_messaging/internal/api"
	"otr_messaging/internal/cryptographic/assetcipher"
	"otr_messaging/internal/model"
	"otr_messaging/internal/service/crypto"
	"otr_messaging/internal/service/dispatcher"
	syncsvc "otr_messaging/internal/service/sync"
	"otr_messaging/internal/session"
	"otr_messaging/internal/storage"
	"otr_messaging/internal/utils/log"
)

type (
	Options struct {
		// SyncInterval is the poll period. Defaults to 5s.
		SyncInterval time.Duration
		// Wake optionally triggers an immediate sync tick (notify socket).
		Wake <-chan struct{}
	}

	// App is the client-side entry point for secure topic messaging. It
	// wires the session box, fan-out crypto, dispatcher and sync engine
	// over one transport and one local store.
	App struct {
		me         *model.User
		api        api.Client
		crypto     *crypto.Service
		dispatcher *dispatcher.Dispatcher
		sync       *syncsvc.Engine
		store      storage.Store
		cache      storage.AssetCache
	}
)

func NewApp(
	me *model.User,
	apiClient api.Client,
	box *session.Box,
	store storage.Store,
	cache storage.AssetCache,
	opts Options,
) (*App, error) {
	cryptoService := crypto.New(box)
	syncEngine := syncsvc.NewEngine(me.ClientID, apiClient, cryptoService, store, opts.SyncInterval, opts.Wake)

	app := &App{
		me:         me,
		api:        apiClient,
		crypto:     cryptoService,
		dispatcher: dispatcher.New(me, apiClient, cryptoService, syncEngine, cache),
		sync:       syncEngine,
		store:      store,
		cache:      cache,
	}

	// single subscription at construction: freshly minted prekeys go
	// straight to the backend
	err := box.RegisterPrekeysDispatch(func(prekeys []model.Prekey) {
		if err := apiClient.RegisterPrekeys(context.Background(), me.ClientID, prekeys); err != nil {
			log.Error("could not register prekeys", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Listen starts (or restarts) the sync loop with the given listener.
func (a *App) Listen(listener syncsvc.Listener) {
	a.sync.Listen(listener)
}

// Stop cancels the sync loop.
func (a *App) Stop() {
	a.sync.StopListening()
}

// SendText posts a text message to the topic.
func (a *App) SendText(ctx context.Context, topicID model.TopicID, text string) (*api.PostResponse, error) {
	return a.dispatcher.SendText(ctx, topicID, text)
}

// ShareAsset shares a file attachment in the topic.
func (a *App) ShareAsset(ctx context.Context, topicID model.TopicID, payload []byte, metadata model.AssetMetadata) (*api.PostResponse, error) {
	return a.dispatcher.ShareAsset(ctx, topicID, payload, metadata)
}

// GetAsset returns the decrypted asset, from cache when possible. The
// decryption key comes from the local index the sync loop maintains.
func (a *App) GetAsset(ctx context.Context, assetID model.AssetID) ([]byte, error) {
	cached, err := a.cache.GetAssetCache(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	key, err := a.store.GetAssetDecryptionKey(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, fmt.Errorf("no decryption key for asset %s", assetID)
	}

	payload, err := a.dispatcher.DownloadAsset(ctx, assetID, key.Key, key.SHA256)
	if err != nil {
		return nil, err
	}

	if err := a.cache.PutAssetCache(ctx, assetID, payload); err != nil {
		log.Warn("could not cache downloaded asset",
			zap.String("assetId", string(assetID)), zap.Error(err))
	}
	return payload, nil
}

// DecryptAsset decrypts an already-downloaded cipher text.
func (a *App) DecryptAsset(asset *model.EncryptedAsset) ([]byte, error) {
	return assetcipher.Decrypt(asset)
}

// ListTopicEvents returns the locally stored events of one topic.
func (a *App) ListTopicEvents(ctx context.Context, topicID model.TopicID) ([]model.StoredEvent, error) {
	return a.store.ListTopicEvents(ctx, topicID)
}

// GetMessageVisibilityForTopic reports who would receive a message right now.
func (a *App) GetMessageVisibilityForTopic(ctx context.Context, topicID model.TopicID) (*api.MessageVisibility, error) {
	return a.api.GetMessageVisibilityForTopic(ctx, topicID)
}

// GetUser returns user details, read through the local cache.
func (a *App) GetUser(ctx context.Context, userID model.UserID) (*model.UserDetail, error) {
	user, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user, err = a.api.GetUserDetails(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := a.store.PutUser(ctx, *user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetSelf returns this device's identity.
func (a *App) GetSelf() *model.User {
	return a.me
}

// ResetSession drops the session with a peer client. Recovery hook for
// repeated decryption failures.
func (a *App) ResetSession(ctx context.Context, peer model.ClientID) error {
	return a.crypto.ResetSession(ctx, peer)
}
