package api

import (
	"context"
	"errors"

	"otr_messaging/internal/model"
)

// RegisterClientRequest announces a new device to the backend.
type RegisterClientRequest struct {
	ClientID model.ClientID `json:"clientId"`
	UserID   model.UserID   `json:"userId"`
	Name     string         `json:"name"`
}

// Client is the backend transport contract. The server is a blind relay and
// asset store: everything it carries is ciphertext.
type Client interface {
	// GetAccessToken fetches a token and keeps it for subsequent calls.
	GetAccessToken(ctx context.Context) (*AccessToken, error)

	// RegisterClient announces this device to the backend.
	RegisterClient(ctx context.Context, req RegisterClientRequest) error

	// JoinTopic adds this client to a topic's roster.
	JoinTopic(ctx context.Context, topicID model.TopicID, clientID model.ClientID) error

	// RegisterPrekeys publishes fresh prekey bundles for this client.
	RegisterPrekeys(ctx context.Context, clientID model.ClientID, prekeys []model.Prekey) error

	// GetPrekeysForTopic resolves the recipient roster for one send.
	GetPrekeysForTopic(ctx context.Context, topicID model.TopicID) (*model.TopicPrekeys, error)

	// GetMessageVisibilityForTopic reports who can currently receive.
	GetMessageVisibilityForTopic(ctx context.Context, topicID model.TopicID) (*MessageVisibility, error)

	// RequestAssetUpload authorizes an upload of sizeBytes.
	RequestAssetUpload(ctx context.Context, sizeBytes int64) (*AssetUploadSpec, error)

	// UploadAsset puts the cipher text where the upload authorization says.
	UploadAsset(ctx context.Context, spec *AssetUploadSpec, cipherText []byte) error

	// DownloadAsset fetches an asset's cipher text.
	DownloadAsset(ctx context.Context, assetID model.AssetID) ([]byte, error)

	// PostEnvelopes delivers one fan-out batch to the topic.
	PostEnvelopes(ctx context.Context, topicID model.TopicID, envelopes []model.Envelope) (*PostResponse, error)

	// GetEvents fetches one page of events for this client.
	GetEvents(ctx context.Context, clientID model.ClientID, filter EventsFilter) (*EventsPage, error)

	// GetUserDetails looks up the public view of a user.
	GetUserDetails(ctx context.Context, userID model.UserID) (*model.UserDetail, error)
}

var (
	// ErrRosterUnavailable aborts a send: fan-out cannot proceed without
	// knowing the recipients.
	ErrRosterUnavailable = errors.New("cannot resolve recipient roster for topic")

	// ErrUpload aborts a send before any envelope is posted, so no asset
	// is ever announced without retrievable cipher text.
	ErrUpload = errors.New("asset upload failed")
)
