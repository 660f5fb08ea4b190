package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"otr_messaging/internal/api"
	"otr_messaging/internal/model"
)

func hostOf(server *httptest.Server) string {
	return strings.TrimPrefix(server.URL, "http://")
}

func TestIdentityHeadersOnEveryRequest(t *testing.T) {
	var gotUser, gotClient string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get("X-User-Id")
		gotClient = r.Header.Get("X-Client-Id")
		json.NewEncoder(w).Encode(model.UserDetail{UserID: "bob", Name: "Bob"})
	}))
	defer server.Close()

	client := api.NewHTTPClient(hostOf(server), "alice", "alice-laptop", nil)
	_, err := client.GetUserDetails(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, "alice", gotUser)
	require.Equal(t, "alice-laptop", gotClient)
}

func TestAccessTokenIsKeptForSubsequentCalls(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/access":
			json.NewEncoder(w).Encode(api.AccessToken{
				UserID: "alice", Type: "Bearer", Token: "tok-123", ExpiresInSeconds: 3600,
			})
		default:
			gotAuth = r.Header.Get("Authorization")
			json.NewEncoder(w).Encode(model.UserDetail{UserID: "bob", Name: "Bob"})
		}
	}))
	defer server.Close()

	client := api.NewHTTPClient(hostOf(server), "alice", "alice-laptop", nil)

	token, err := client.GetAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-123", token.Token)

	_, err = client.GetUserDetails(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, "Bearer tok-123", gotAuth)
}

func TestGetEventsQueryParameters(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/events/alice-laptop", r.URL.Path)
		gotQuery = map[string]string{}
		for key := range r.URL.Query() {
			gotQuery[key] = r.URL.Query().Get(key)
		}
		json.NewEncoder(w).Encode(api.EventsPage{HasMore: true, Events: []model.EncryptedEvent{
			{EventID: "e1", SendingUser: "bob"},
		}})
	}))
	defer server.Close()

	client := api.NewHTTPClient(hostOf(server), "alice", "alice-laptop", nil)

	since := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	page, err := client.GetEvents(context.Background(), "alice-laptop", api.EventsFilter{
		SinceTime:    &since,
		SinceEventID: "e0",
		Limit:        100,
		OnlyUnread:   true,
	})
	require.NoError(t, err)
	require.True(t, page.HasMore)
	require.Len(t, page.Events, 1)

	require.Equal(t, "2026-03-14T09:26:53.000Z", gotQuery["sinceTime"])
	require.Equal(t, "e0", gotQuery["sinceEventId"])
	require.Equal(t, "100", gotQuery["limit"])
	require.Equal(t, "true", gotQuery["onlyUnread"])
}

func TestUploadAssetMultipartForm(t *testing.T) {
	var gotFields map[string]string
	var gotFile []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotFields = map[string]string{}
		for key := range r.MultipartForm.Value {
			gotFields[key] = r.FormValue(key)
		}
		file, _, err := r.FormFile("asset")
		require.NoError(t, err)
		defer file.Close()
		gotFile, err = io.ReadAll(file)
		require.NoError(t, err)
	}))
	defer server.Close()

	client := api.NewHTTPClient(hostOf(server), "alice", "alice-laptop", nil)
	err := client.UploadAsset(context.Background(), &api.AssetUploadSpec{
		URL:        server.URL + "/upload",
		AssetID:    "asset-1",
		FormFields: map[string]string{"policy": "signed-v1"},
	}, []byte("cipher bytes"))
	require.NoError(t, err)

	require.Equal(t, "signed-v1", gotFields["policy"])
	require.Equal(t, []byte("cipher bytes"), gotFile)
}

func TestUploadAssetFailureWrapsErrUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer server.Close()

	client := api.NewHTTPClient(hostOf(server), "alice", "alice-laptop", nil)
	err := client.UploadAsset(context.Background(), &api.AssetUploadSpec{
		URL: server.URL + "/upload", AssetID: "asset-1",
	}, []byte("x"))
	require.ErrorIs(t, err, api.ErrUpload)
}

func TestGetPrekeysFailureWrapsRosterUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := api.NewHTTPClient(hostOf(server), "alice", "alice-laptop", nil)
	_, err := client.GetPrekeysForTopic(context.Background(), "topic-1")
	require.ErrorIs(t, err, api.ErrRosterUnavailable)
}

func TestPostEnvelopes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/topics/topic-1/events", r.URL.Path)

		var envelopes []model.Envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&envelopes))
		require.Len(t, envelopes, 2)

		json.NewEncoder(w).Encode(api.PostResponse{
			EventID:        "event-9",
			CreatedAt:      time.Now().UTC(),
			UsersReceiving: []model.UserID{"bob"},
		})
	}))
	defer server.Close()

	client := api.NewHTTPClient(hostOf(server), "alice", "alice-laptop", nil)
	response, err := client.PostEnvelopes(context.Background(), "topic-1", []model.Envelope{
		{SenderClientID: "alice-laptop", RecipientClientID: "bob-phone", CipherTextPayload: []byte{1}},
		{SenderClientID: "alice-laptop", RecipientClientID: "bob-tablet", CipherTextPayload: []byte{2}},
	})
	require.NoError(t, err)
	require.Equal(t, model.EventID("event-9"), response.EventID)
	require.Equal(t, []model.UserID{"bob"}, response.UsersReceiving)
}
