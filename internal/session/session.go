package session

import (
	"context"
	"errors"

	"otr_messaging/internal/model"
)

// Cipher is the secure-session primitive the messaging engine is built on.
// Implementations own per-peer session state: Encrypt can establish a session
// from a prekey, Decrypt can establish one from the handshake embedded in the
// first incoming ciphertext, and DeleteSession throws the state away so the
// next contact starts fresh.
type Cipher interface {
	// Encrypt encrypts plaintext for the given session. prekey may be nil
	// when a session is already established; it is ignored if one is.
	Encrypt(ctx context.Context, id model.SessionID, plaintext []byte, prekey *model.Prekey) ([]byte, error)

	// Decrypt decrypts one ciphertext payload, creating the session from
	// the embedded handshake if this is the first message from the peer.
	Decrypt(ctx context.Context, id model.SessionID, payload []byte) ([]byte, error)

	// DeleteSession removes local state for the session.
	DeleteSession(ctx context.Context, id model.SessionID) error
}

var (
	// ErrNoSession means encryption was requested for a peer with no
	// established session and no prekey to establish one from.
	ErrNoSession = errors.New("no session with peer and no prekey supplied")

	// ErrDecryption means the session cipher rejected the payload. The
	// caller decides whether to retry, drop or reset the session.
	ErrDecryption = errors.New("session decryption failed")

	// ErrInvalidPrekey means a peer's prekey bundle failed signature
	// verification. No session is established from such a bundle.
	ErrInvalidPrekey = errors.New("prekey bundle rejected")
)
