package codec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"otr_messaging/internal/codec"
	"otr_messaging/internal/model"
)

func TestTextMessageRoundTrip(t *testing.T) {
	message := model.NewTextMessage("topic-1", "hello there")

	encoded, err := codec.Encode(message)
	require.NoError(t, err)

	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, message, decoded)
}

func TestAssetMessageRoundTrip(t *testing.T) {
	message := model.NewAssetMessage("topic-1", model.AssetContent{
		AssetID: "asset-42",
		Key:     []byte{1, 2, 3, 4},
		SHA256:  []byte{5, 6, 7, 8},
		Metadata: model.AssetMetadata{
			FileName:      "report.pdf",
			Length:        1234,
			FileExtension: "pdf",
		},
	})

	encoded, err := codec.Encode(message)
	require.NoError(t, err)

	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, message, decoded)
}

func TestEncodeIsDeterministic(t *testing.T) {
	message := model.NewTextMessage("topic-1", "same bytes every time")

	first, err := codec.Encode(message)
	require.NoError(t, err)
	second, err := codec.Encode(message)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestEncodeRejectsInvalidMessages(t *testing.T) {
	cases := map[string]model.Message{
		"unknown type": {
			Type:    "new-sticker",
			TopicID: "topic-1",
			Text:    &model.TextContent{Text: "x"},
		},
		"missing topic": {
			Type: model.MessageTypeText,
			Text: &model.TextContent{Text: "x"},
		},
		"text without payload": {
			Type:    model.MessageTypeText,
			TopicID: "topic-1",
		},
		"both payloads set": {
			Type:    model.MessageTypeText,
			TopicID: "topic-1",
			Text:    &model.TextContent{Text: "x"},
			Asset:   &model.AssetContent{AssetID: "a", Key: []byte{1}, SHA256: []byte{2}},
		},
		"asset without key": {
			Type:    model.MessageTypeAsset,
			TopicID: "topic-1",
			Asset:   &model.AssetContent{AssetID: "a", SHA256: []byte{2}},
		},
	}

	for name, message := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Encode(message)
			require.ErrorIs(t, err, codec.ErrMalformedMessage)
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := codec.Decode([]byte("\U0001F4A3"))
	require.ErrorIs(t, err, codec.ErrMalformedMessage)

	_, err = codec.Decode(nil)
	require.ErrorIs(t, err, codec.ErrMalformedMessage)
}
