package model

type (
	// Header is the ratchet header carried along with each ciphertext.
	Header struct {
		Pub    [32]byte `cbor:"pub"`    // sender's current ratchet public key
		MsgNum uint32   `cbor:"msgNum"` // message number in the sending chain
		Prev   uint32   `cbor:"prev"`   // previous sending chain length (PN)
	}

	// SessionMessage is the wire form of one session ciphertext payload.
	// Handshake is present only on the first message of a new session so
	// the receiving side can derive the shared root key.
	SessionMessage struct {
		Handshake  *X3DHHandshake `cbor:"handshake,omitempty"`
		Header     Header         `cbor:"header"`
		Ciphertext []byte         `cbor:"ciphertext"`
	}
)
