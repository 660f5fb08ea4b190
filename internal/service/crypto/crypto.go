package crypto

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"otr_messaging/internal/codec"
	"otr_messaging/internal/model"
	"otr_messaging/internal/session"
	"otr_messaging/internal/utils/log"
)

// Service bridges logical messages to the per-session secure channel:
// one plaintext fans out into one envelope per recipient client.
type Service struct {
	cipher session.Cipher
}

// sentinelPayload is what a recipient gets when encrypting for its session
// failed. It never decrypts, so the failure surfaces as one unreadable
// message for that client instead of aborting delivery to everyone else.
var sentinelPayload = []byte("\U0001F4A3")

func New(cipher session.Cipher) *Service {
	return &Service{cipher: cipher}
}

// EncryptForRecipients encodes the message once and encrypts it concurrently
// for every roster entry. It always returns exactly one envelope per
// recipient; per-recipient encryption failures are swallowed into the
// sentinel payload. Only the encode step can fail the whole batch.
func (s *Service) EncryptForRecipients(
	ctx context.Context,
	sender model.ClientID,
	message model.Message,
	roster map[model.ClientID]*model.Prekey,
) ([]model.Envelope, error) {
	plainText, err := codec.Encode(message)
	if err != nil {
		return nil, err
	}

	recipients := make([]model.ClientID, 0, len(roster))
	for id := range roster {
		recipients = append(recipients, id)
	}

	payloads := make([][]byte, len(recipients))
	var wg sync.WaitGroup
	for i, id := range recipients {
		wg.Add(1)
		go func(i int, id model.ClientID) {
			defer wg.Done()
			payload, err := s.cipher.Encrypt(ctx, model.SessionIDForClient(id), plainText, roster[id])
			if err != nil {
				log.Error("could not encrypt payload for client",
					zap.String("client", string(id)), zap.Error(err))
				payload = sentinelPayload
			}
			payloads[i] = payload
		}(i, id)
	}
	wg.Wait()

	envelopes := make([]model.Envelope, len(recipients))
	for i, id := range recipients {
		envelopes[i] = model.Envelope{
			SenderClientID:    sender,
			RecipientClientID: id,
			CipherTextPayload: payloads[i],
		}
	}
	return envelopes, nil
}

// DecryptEnvelope decrypts one incoming envelope and decodes the plaintext.
// The session is created implicitly when this is the first message from the
// sending client.
func (s *Service) DecryptEnvelope(ctx context.Context, envelope model.Envelope) (model.Message, error) {
	id := model.SessionIDForClient(envelope.SenderClientID)
	plainText, err := s.cipher.Decrypt(ctx, id, envelope.CipherTextPayload)
	if err != nil {
		return model.Message{}, err
	}
	return codec.Decode(plainText)
}

// ResetSession deletes local session state for a peer, so the next message
// from it starts a fresh session. Recovery hook for state divergence.
func (s *Service) ResetSession(ctx context.Context, peer model.ClientID) error {
	return s.cipher.DeleteSession(ctx, model.SessionIDForClient(peer))
}
