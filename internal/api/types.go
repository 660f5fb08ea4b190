package api

import (
	"time"

	"otr_messaging/internal/model"
)

type (
	// EventsFilter narrows a GetEvents page.
	EventsFilter struct {
		// SinceTime returns events created at or after the given time.
		SinceTime *time.Time
		// SinceEventID returns events that arrived after this event.
		SinceEventID model.EventID
		// Limit caps the page size. 0 lets the server choose.
		Limit int
		// OnlyUnread returns only events not delivered before.
		OnlyUnread bool
	}

	// EventsPage is one page of encrypted events for a client. HasMore
	// signals that another request with the same filter will return more.
	EventsPage struct {
		HasMore bool                   `json:"hasMore"`
		Events  []model.EncryptedEvent `json:"events"`
	}

	// PostResponse confirms an envelope post. EventID and CreatedAt are
	// allocated by the server and shared by every recipient's copy.
	PostResponse struct {
		EventID              model.EventID  `json:"eventId"`
		CreatedAt            time.Time      `json:"createdAt"`
		UsersReceiving       []model.UserID `json:"usersReceiving"`
		UsersUnableToReceive []model.UserID `json:"usersUnableToReceive"`
	}

	// MessageVisibility reports who would receive a message posted to a
	// topic right now. Same shape as PostResponse, nothing was sent.
	MessageVisibility struct {
		UsersReceiving       []model.UserID `json:"usersReceiving"`
		UsersUnableToReceive []model.UserID `json:"usersUnableToReceive"`
	}

	// AssetUploadSpec is an upload authorization: where to put the cipher
	// text, the asset's server-side identity, and any form fields the
	// store wants echoed back.
	AssetUploadSpec struct {
		URL        string            `json:"url"`
		AssetID    model.AssetID     `json:"assetId"`
		FormFields map[string]string `json:"formFields"`
	}

	// AccessToken authenticates subsequent calls.
	AccessToken struct {
		UserID           model.UserID `json:"userId"`
		ExpiresInSeconds int          `json:"expiresInSeconds"`
		Type             string       `json:"type"`
		Token            string       `json:"token"`
	}
)
