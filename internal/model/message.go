package model

import "time"

type MessageType string

const (
	MessageTypeText  MessageType = "new-text"
	MessageTypeAsset MessageType = "new-asset"
)

type (
	// Message is the decrypted logical unit carried inside an envelope.
	// Exactly one of Text/Asset is set, matching Type.
	Message struct {
		Type    MessageType   `json:"type" cbor:"type"`
		TopicID TopicID       `json:"topicId" cbor:"topicId"`
		Text    *TextContent  `json:"text,omitempty" cbor:"text,omitempty"`
		Asset   *AssetContent `json:"asset,omitempty" cbor:"asset,omitempty"`
	}

	TextContent struct {
		Text string `json:"text" cbor:"text"`
	}

	AssetContent struct {
		AssetID AssetID `json:"assetId" cbor:"assetId"`
		// Key decrypts the asset cipher text, SHA256 authenticates it.
		Key      []byte        `json:"key" cbor:"key"`
		SHA256   []byte        `json:"sha256" cbor:"sha256"`
		Metadata AssetMetadata `json:"metadata" cbor:"metadata"`
	}

	AssetMetadata struct {
		FileName      string `json:"fileName" cbor:"fileName"`
		Length        int64  `json:"length" cbor:"length"`
		FileExtension string `json:"fileExtension" cbor:"fileExtension"`
	}

	// Envelope is one recipient-addressed encrypted unit. The payload is
	// opaque to everything except the session layer.
	Envelope struct {
		SenderClientID    ClientID `json:"senderClientId"`
		RecipientClientID ClientID `json:"recipientClientId"`
		CipherTextPayload []byte   `json:"cipherTextPayload"`
	}

	// EncryptedEvent is what the server hands out for one client.
	EncryptedEvent struct {
		EventID     EventID   `json:"eventId"`
		CreatedAt   time.Time `json:"createdAt"`
		SendingUser UserID    `json:"sendingUser"`
		Envelope    Envelope  `json:"envelope"`
	}

	// StoredEvent is the durable, decrypted form of an event. Storing the
	// same EventID twice overwrites, it never duplicates.
	StoredEvent struct {
		EventID     EventID     `json:"eventId"`
		CreatedAt   time.Time   `json:"createdAt"`
		SendingUser UserID      `json:"sendingUser"`
		Type        MessageType `json:"type"`
		Message     Message     `json:"message"`
	}
)

// NewTextMessage builds the text variant.
func NewTextMessage(topic TopicID, text string) Message {
	return Message{
		Type:    MessageTypeText,
		TopicID: topic,
		Text:    &TextContent{Text: text},
	}
}

// NewAssetMessage builds the asset variant.
func NewAssetMessage(topic TopicID, asset AssetContent) Message {
	return Message{
		Type:    MessageTypeAsset,
		TopicID: topic,
		Asset:   &asset,
	}
}
