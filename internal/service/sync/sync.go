package sync

import (
	"context"
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	"otr_messaging/internal/api"
	"otr_messaging/internal/model"
	"otr_messaging/internal/service/crypto"
	"otr_messaging/internal/storage"
	"otr_messaging/internal/utils/log"
)

// Listener receives the fresh events of one sync tick (or one local echo).
// It is called once per tick, not once per event.
type Listener func(events []model.StoredEvent)

// Engine periodically pulls this client's encrypted events from the
// backend, decrypts them, persists them and notifies the active listener.
// Exactly one listener is active at a time; registering a new one replaces
// the previous one and its timer.
type Engine struct {
	clientID model.ClientID
	api      api.Client
	crypto   *crypto.Service
	store    storage.Store

	interval time.Duration
	pageSize int
	wake     <-chan struct{} // optional early wake-up, may be nil

	mu       stdsync.Mutex
	stop     chan struct{}
	listener Listener
}

func NewEngine(
	clientID model.ClientID,
	apiClient api.Client,
	cryptoService *crypto.Service,
	store storage.Store,
	interval time.Duration,
	wake <-chan struct{},
) *Engine {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Engine{
		clientID: clientID,
		api:      apiClient,
		crypto:   cryptoService,
		store:    store,
		interval: interval,
		pageSize: 100,
		wake:     wake,
	}
}

// Listen registers the listener and starts the poll loop. A previous
// listener and its pending timer are cancelled atomically; the replacement
// takes effect before the next tick is scheduled, never mid-tick.
func (e *Engine) Listen(listener Listener) {
	e.mu.Lock()
	if e.stop != nil {
		close(e.stop)
	}
	stop := make(chan struct{})
	e.stop = stop
	e.listener = listener
	e.mu.Unlock()

	go e.loop(stop)
}

// StopListening cancels the poll loop and clears the listener.
func (e *Engine) StopListening() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
	e.listener = nil
}

func (e *Engine) loop(stop chan struct{}) {
	timer := time.NewTimer(e.interval)
	defer timer.Stop()

	wake := e.wake
	for {
		select {
		case <-stop:
			return
		case <-timer.C:
		case _, ok := <-wake:
			if !ok {
				// notify channel died; keep polling on the timer
				wake = nil
				continue
			}
		}

		if err := e.Tick(context.Background()); err != nil {
			log.Error("sync tick failed", zap.Error(err))
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(e.interval)
	}
}

// Tick runs one full sync cycle: fetch every pending page, decrypt the
// whole batch, persist it and notify the listener once.
func (e *Engine) Tick(ctx context.Context) error {
	encrypted, err := e.fetchAllEvents(ctx)
	if err != nil {
		return err
	}
	if len(encrypted) == 0 {
		return nil
	}

	events := e.decryptBatch(ctx, encrypted)
	if len(events) == 0 {
		return nil
	}
	return e.Ingest(ctx, events)
}

// fetchAllEvents is the pagination loop: it keeps requesting pages until
// the server reports no more, and only then hands the batch onward, so
// ordering and asset-key extraction see the complete tick.
func (e *Engine) fetchAllEvents(ctx context.Context) ([]model.EncryptedEvent, error) {
	filter := api.EventsFilter{Limit: e.pageSize, OnlyUnread: true}

	var events []model.EncryptedEvent
	for {
		page, err := e.api.GetEvents(ctx, e.clientID, filter)
		if err != nil {
			return nil, err
		}
		events = append(events, page.Events...)
		if !page.HasMore {
			return events, nil
		}
	}
}

// decryptBatch decrypts all events concurrently. A failing event is logged
// and skipped rather than failing the tick: one diverged session must not
// starve delivery of everything else.
func (e *Engine) decryptBatch(ctx context.Context, encrypted []model.EncryptedEvent) []model.StoredEvent {
	decrypted := make([]*model.StoredEvent, len(encrypted))
	var wg stdsync.WaitGroup
	for i, event := range encrypted {
		wg.Add(1)
		go func(i int, event model.EncryptedEvent) {
			defer wg.Done()
			message, err := e.crypto.DecryptEnvelope(ctx, event.Envelope)
			if err != nil {
				log.Error("could not decrypt event",
					zap.String("eventId", string(event.EventID)),
					zap.String("sender", string(event.Envelope.SenderClientID)),
					zap.Error(err))
				return
			}
			decrypted[i] = &model.StoredEvent{
				EventID:     event.EventID,
				CreatedAt:   event.CreatedAt,
				SendingUser: event.SendingUser,
				Type:        message.Type,
				Message:     message,
			}
		}(i, event)
	}
	wg.Wait()

	events := make([]model.StoredEvent, 0, len(encrypted))
	for _, event := range decrypted {
		if event != nil {
			events = append(events, *event)
		}
	}
	if skipped := len(encrypted) - len(events); skipped > 0 {
		log.Warn("skipped undecryptable events", zap.Int("count", skipped))
	}
	return events
}

// Ingest persists a batch of decrypted events, indexes asset decryption
// keys by asset ID, and notifies the listener with the events that were
// not stored before. The dispatcher's local echo goes through here too, so
// the server's later copy of an echoed event updates storage silently.
func (e *Engine) Ingest(ctx context.Context, events []model.StoredEvent) error {
	fresh, err := e.store.PutEvents(ctx, events)
	if err != nil {
		return err
	}

	var assetKeys []model.AssetDecryptionKey
	for _, event := range events {
		if event.Type != model.MessageTypeAsset || event.Message.Asset == nil {
			continue
		}
		asset := event.Message.Asset
		assetKeys = append(assetKeys, model.AssetDecryptionKey{
			AssetID: asset.AssetID,
			Key:     asset.Key,
			SHA256:  asset.SHA256,
		})
	}
	if len(assetKeys) > 0 {
		if err := e.store.PutAssetDecryptionKeys(ctx, assetKeys); err != nil {
			return err
		}
	}

	freshSet := make(map[model.EventID]struct{}, len(fresh))
	for _, id := range fresh {
		freshSet[id] = struct{}{}
	}
	var toNotify []model.StoredEvent
	for _, event := range events {
		if _, ok := freshSet[event.EventID]; ok {
			toNotify = append(toNotify, event)
		}
	}

	e.mu.Lock()
	listener := e.listener
	e.mu.Unlock()
	if listener != nil && len(toNotify) > 0 {
		listener(toNotify)
	}
	return nil
}
