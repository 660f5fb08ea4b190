package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"otr_messaging/internal/model"
)

// HTTPClient talks to the backend over its REST API.
type HTTPClient struct {
	host     string
	userID   model.UserID
	clientID model.ClientID
	http     *http.Client
	token    string
	scheme   string
}

func NewHTTPClient(host string, userID model.UserID, clientID model.ClientID, client *http.Client) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{
		host:     host,
		userID:   userID,
		clientID: clientID,
		http:     client,
		scheme:   "http",
	}
}

var _ Client = (*HTTPClient)(nil)

func (c *HTTPClient) buildURL(path string, query url.Values) string {
	u := url.URL{
		Scheme: c.scheme,
		Host:   c.host,
		Path:   path,
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *HTTPClient) do(ctx context.Context, method, rawURL string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}
	req.Header.Set("X-User-Id", string(c.userID))
	req.Header.Set("X-Client-Id", string(c.clientID))

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: unexpected status %s", method, rawURL, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) postJSON(ctx context.Context, rawURL string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, rawURL, bytes.NewReader(data), "application/json", out)
}

func (c *HTTPClient) GetAccessToken(ctx context.Context) (*AccessToken, error) {
	var token AccessToken
	if err := c.postJSON(ctx, c.buildURL("/api/v1/access", nil), nil, &token); err != nil {
		return nil, err
	}
	// keep it for the next call
	c.token = fmt.Sprintf("%s %s", token.Type, token.Token)
	return &token, nil
}

func (c *HTTPClient) RegisterClient(ctx context.Context, req RegisterClientRequest) error {
	return c.postJSON(ctx, c.buildURL("/api/v1/clients", nil), req, nil)
}

func (c *HTTPClient) JoinTopic(ctx context.Context, topicID model.TopicID, clientID model.ClientID) error {
	u := c.buildURL(fmt.Sprintf("/api/v1/topics/%s/clients", topicID), nil)
	return c.postJSON(ctx, u, map[string]model.ClientID{"clientId": clientID}, nil)
}

func (c *HTTPClient) RegisterPrekeys(ctx context.Context, clientID model.ClientID, prekeys []model.Prekey) error {
	u := c.buildURL(fmt.Sprintf("/api/v1/clients/%s/prekeys", clientID), nil)
	return c.postJSON(ctx, u, prekeys, nil)
}

func (c *HTTPClient) GetPrekeysForTopic(ctx context.Context, topicID model.TopicID) (*model.TopicPrekeys, error) {
	u := c.buildURL(fmt.Sprintf("/api/v1/topics/%s/prekeys", topicID), nil)
	var prekeys model.TopicPrekeys
	if err := c.do(ctx, http.MethodGet, u, nil, "", &prekeys); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRosterUnavailable, err)
	}
	return &prekeys, nil
}

func (c *HTTPClient) GetMessageVisibilityForTopic(ctx context.Context, topicID model.TopicID) (*MessageVisibility, error) {
	u := c.buildURL(fmt.Sprintf("/api/v1/topics/%s/visibility", topicID), nil)
	var visibility MessageVisibility
	if err := c.do(ctx, http.MethodGet, u, nil, "", &visibility); err != nil {
		return nil, err
	}
	return &visibility, nil
}

func (c *HTTPClient) RequestAssetUpload(ctx context.Context, sizeBytes int64) (*AssetUploadSpec, error) {
	u := c.buildURL("/api/v1/assets", nil)
	var spec AssetUploadSpec
	if err := c.postJSON(ctx, u, map[string]int64{"sizeBytes": sizeBytes}, &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	return &spec, nil
}

func (c *HTTPClient) UploadAsset(ctx context.Context, spec *AssetUploadSpec, cipherText []byte) error {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	for field, value := range spec.FormFields {
		if err := form.WriteField(field, value); err != nil {
			return fmt.Errorf("%w: %v", ErrUpload, err)
		}
	}
	part, err := form.CreateFormFile("asset", string(spec.AssetID))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if _, err := part.Write(cipherText); err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}

	if err := c.do(ctx, http.MethodPost, spec.URL, &buf, form.FormDataContentType(), nil); err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}
	return nil
}

func (c *HTTPClient) DownloadAsset(ctx context.Context, assetID model.AssetID) ([]byte, error) {
	u := c.buildURL(fmt.Sprintf("/api/v1/assets/%s", assetID), nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download asset %s: unexpected status %s", assetID, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (c *HTTPClient) PostEnvelopes(ctx context.Context, topicID model.TopicID, envelopes []model.Envelope) (*PostResponse, error) {
	u := c.buildURL(fmt.Sprintf("/api/v1/topics/%s/events", topicID), nil)
	var post PostResponse
	if err := c.postJSON(ctx, u, envelopes, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *HTTPClient) GetEvents(ctx context.Context, clientID model.ClientID, filter EventsFilter) (*EventsPage, error) {
	query := url.Values{}
	if filter.SinceTime != nil {
		query.Set("sinceTime", filter.SinceTime.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	}
	if filter.SinceEventID != "" {
		query.Set("sinceEventId", string(filter.SinceEventID))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.OnlyUnread {
		query.Set("onlyUnread", "true")
	}

	u := c.buildURL(fmt.Sprintf("/api/v1/events/%s", clientID), query)
	var page EventsPage
	if err := c.do(ctx, http.MethodGet, u, nil, "", &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *HTTPClient) GetUserDetails(ctx context.Context, userID model.UserID) (*model.UserDetail, error) {
	u := c.buildURL(fmt.Sprintf("/api/v1/users/%s", userID), nil)
	var user model.UserDetail
	if err := c.do(ctx, http.MethodGet, u, nil, "", &user); err != nil {
		return nil, err
	}
	return &user, nil
}
