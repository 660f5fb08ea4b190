package crypto_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"otr_messaging/internal/model"
	"otr_messaging/internal/service/crypto"
	"otr_messaging/internal/session"
)

// fakeCipher prefixes plaintext instead of encrypting it, and can be told
// to fail for particular sessions.
type fakeCipher struct {
	failFor map[model.SessionID]bool
}

var encPrefix = []byte("enc:")

func (f *fakeCipher) Encrypt(_ context.Context, id model.SessionID, plaintext []byte, _ *model.Prekey) ([]byte, error) {
	if f.failFor[id] {
		return nil, errors.New("session diverged")
	}
	return append(bytes.Clone(encPrefix), plaintext...), nil
}

func (f *fakeCipher) Decrypt(_ context.Context, _ model.SessionID, payload []byte) ([]byte, error) {
	if !bytes.HasPrefix(payload, encPrefix) {
		return nil, session.ErrDecryption
	}
	return payload[len(encPrefix):], nil
}

func (f *fakeCipher) DeleteSession(context.Context, model.SessionID) error {
	return nil
}

func roster(ids ...model.ClientID) map[model.ClientID]*model.Prekey {
	r := make(map[model.ClientID]*model.Prekey, len(ids))
	for _, id := range ids {
		r[id] = &model.Prekey{}
	}
	return r
}

func TestEncryptForRecipientsFansOut(t *testing.T) {
	service := crypto.New(&fakeCipher{})
	message := model.NewTextMessage("topic-1", "fan me out")

	envelopes, err := service.EncryptForRecipients(context.Background(), "me",
		message, roster("a", "b", "c"))
	require.NoError(t, err)
	require.Len(t, envelopes, 3)

	seen := map[model.ClientID]bool{}
	for _, envelope := range envelopes {
		require.Equal(t, model.ClientID("me"), envelope.SenderClientID)
		seen[envelope.RecipientClientID] = true

		decrypted, err := service.DecryptEnvelope(context.Background(), envelope)
		require.NoError(t, err)
		require.Equal(t, message, decrypted)
	}
	require.Len(t, seen, 3)
}

func TestEncryptForRecipientsOneFailureDoesNotAbortBatch(t *testing.T) {
	service := crypto.New(&fakeCipher{failFor: map[model.SessionID]bool{"b": true}})
	message := model.NewTextMessage("topic-1", "partial delivery")

	envelopes, err := service.EncryptForRecipients(context.Background(), "me",
		message, roster("a", "b", "c"))
	require.NoError(t, err)
	require.Len(t, envelopes, 3)

	for _, envelope := range envelopes {
		if envelope.RecipientClientID == "b" {
			// the failed recipient still gets an envelope, one that can
			// never decrypt
			require.Equal(t, []byte("\U0001F4A3"), envelope.CipherTextPayload)
			_, err := service.DecryptEnvelope(context.Background(), envelope)
			require.Error(t, err)
			continue
		}
		decrypted, err := service.DecryptEnvelope(context.Background(), envelope)
		require.NoError(t, err)
		require.Equal(t, message, decrypted)
	}
}

func TestEncryptForRecipientsRejectsInvalidMessage(t *testing.T) {
	service := crypto.New(&fakeCipher{})

	_, err := service.EncryptForRecipients(context.Background(), "me",
		model.Message{Type: "bogus", TopicID: "topic-1"}, roster("a"))
	require.Error(t, err)
}

func TestEncryptForRecipientsEmptyRoster(t *testing.T) {
	service := crypto.New(&fakeCipher{})

	envelopes, err := service.EncryptForRecipients(context.Background(), "me",
		model.NewTextMessage("topic-1", "nobody home"), nil)
	require.NoError(t, err)
	require.Empty(t, envelopes)
}
