package codec

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"otr_messaging/internal/model"
)

// Deterministic CBOR serialization of the logical message. The same Message
// always encodes to the same bytes, and decoding is strict: an unknown tag
// or a missing variant payload is an error, never a best-effort Message.

var ErrMalformedMessage = errors.New("malformed message")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Encode serializes a message to its canonical plaintext form.
func Encode(m model.Message) ([]byte, error) {
	if err := validate(m); err != nil {
		return nil, err
	}
	return encMode.Marshal(m)
}

// Decode is the inverse of Encode.
func Decode(plainText []byte) (model.Message, error) {
	var m model.Message
	if err := decMode.Unmarshal(plainText, &m); err != nil {
		return model.Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := validate(m); err != nil {
		return model.Message{}, err
	}
	return m, nil
}

func validate(m model.Message) error {
	if m.TopicID == "" {
		return fmt.Errorf("%w: missing topicId", ErrMalformedMessage)
	}
	switch m.Type {
	case model.MessageTypeText:
		if m.Text == nil || m.Asset != nil {
			return fmt.Errorf("%w: text message without exactly one text payload", ErrMalformedMessage)
		}
	case model.MessageTypeAsset:
		if m.Asset == nil || m.Text != nil {
			return fmt.Errorf("%w: asset message without exactly one asset payload", ErrMalformedMessage)
		}
		if m.Asset.AssetID == "" || len(m.Asset.Key) == 0 || len(m.Asset.SHA256) == 0 {
			return fmt.Errorf("%w: asset message missing assetId, key or sha256", ErrMalformedMessage)
		}
	default:
		return fmt.Errorf("%w: unknown message type %q", ErrMalformedMessage, m.Type)
	}
	return nil
}
