package dispatcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"otr_messaging/internal/api"
	"otr_messaging/internal/cryptographic/assetcipher"
	"otr_messaging/internal/model"
	"otr_messaging/internal/service/crypto"
	"otr_messaging/internal/storage"
	"otr_messaging/internal/utils/log"
)

// EventSink is where confirmed sends are fed so the sender sees its own
// message immediately. The sync engine implements it; both paths converge
// on the same persistence and notification code.
type EventSink interface {
	Ingest(ctx context.Context, events []model.StoredEvent) error
}

// Dispatcher drives one outbound message from plaintext to posted
// envelopes: resolve roster, encrypt (and upload) any asset, fan out the
// envelopes, post them, and echo the confirmed event locally.
type Dispatcher struct {
	me     *model.User
	api    api.Client
	crypto *crypto.Service
	sink   EventSink
	cache  storage.AssetCache
}

func New(me *model.User, apiClient api.Client, cryptoService *crypto.Service, sink EventSink, cache storage.AssetCache) *Dispatcher {
	return &Dispatcher{
		me:     me,
		api:    apiClient,
		crypto: cryptoService,
		sink:   sink,
		cache:  cache,
	}
}

// SendText encrypts and posts a text message to the topic.
func (d *Dispatcher) SendText(ctx context.Context, topicID model.TopicID, text string) (*api.PostResponse, error) {
	message := model.NewTextMessage(topicID, text)

	prekeys, err := d.api.GetPrekeysForTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	return d.encryptAndPost(ctx, message, prekeys)
}

// ShareAsset encrypts the payload, uploads the cipher text and posts an
// asset message carrying the decryption key and digest.
//
// The roster is resolved concurrently with asset encryption since neither
// depends on the other. The upload always completes before envelopes are
// posted: recipients must never learn about an asset whose cipher text is
// not yet retrievable.
func (d *Dispatcher) ShareAsset(ctx context.Context, topicID model.TopicID, payload []byte, metadata model.AssetMetadata) (*api.PostResponse, error) {
	type rosterResult struct {
		prekeys *model.TopicPrekeys
		err     error
	}
	rosterCh := make(chan rosterResult, 1)
	go func() {
		prekeys, err := d.api.GetPrekeysForTopic(ctx, topicID)
		rosterCh <- rosterResult{prekeys: prekeys, err: err}
	}()

	asset, err := assetcipher.Encrypt(payload)
	if err != nil {
		return nil, err
	}

	spec, err := d.api.RequestAssetUpload(ctx, int64(len(asset.CipherText)))
	if err != nil {
		return nil, err
	}
	if err := d.api.UploadAsset(ctx, spec, asset.CipherText); err != nil {
		return nil, err
	}

	roster := <-rosterCh
	if roster.err != nil {
		return nil, roster.err
	}

	message := model.NewAssetMessage(topicID, model.AssetContent{
		AssetID:  spec.AssetID,
		Key:      asset.Key,
		SHA256:   asset.SHA256,
		Metadata: metadata,
	})

	response, err := d.encryptAndPost(ctx, message, roster.prekeys)
	if err != nil {
		return nil, err
	}

	// we already hold the plaintext, no reason to download it again later
	if err := d.cache.PutAssetCache(ctx, spec.AssetID, payload); err != nil {
		log.Warn("could not cache shared asset",
			zap.String("assetId", string(spec.AssetID)), zap.Error(err))
	}
	return response, nil
}

// DownloadAsset fetches and decrypts an asset's cipher text.
func (d *Dispatcher) DownloadAsset(ctx context.Context, assetID model.AssetID, key, sha256 []byte) ([]byte, error) {
	cipherText, err := d.api.DownloadAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return assetcipher.Decrypt(&model.EncryptedAsset{
		CipherText: cipherText,
		Key:        key,
		SHA256:     sha256,
	})
}

func (d *Dispatcher) encryptAndPost(ctx context.Context, message model.Message, prekeys *model.TopicPrekeys) (*api.PostResponse, error) {
	roster := prekeys.Roster(d.me.ClientID)
	if len(roster) == 0 {
		return nil, fmt.Errorf("%w: topic %s has no recipient clients", api.ErrRosterUnavailable, message.TopicID)
	}

	envelopes, err := d.crypto.EncryptForRecipients(ctx, d.me.ClientID, message, roster)
	if err != nil {
		return nil, err
	}

	response, err := d.api.PostEnvelopes(ctx, message.TopicID, envelopes)
	if err != nil {
		return nil, err
	}

	d.echo(ctx, message, response)
	return response, nil
}

// echo synthesizes the StoredEvent this send will eventually produce on a
// sync pull and feeds it into the shared ingest path. If this fails the
// send still succeeded; the next sync tick converges on the server's copy.
func (d *Dispatcher) echo(ctx context.Context, message model.Message, response *api.PostResponse) {
	event := model.StoredEvent{
		EventID:     response.EventID,
		CreatedAt:   response.CreatedAt,
		SendingUser: d.me.UserID,
		Type:        message.Type,
		Message:     message,
	}
	if err := d.sink.Ingest(ctx, []model.StoredEvent{event}); err != nil {
		log.Error("could not echo sent message locally",
			zap.String("eventId", string(response.EventID)), zap.Error(err))
	}
}
