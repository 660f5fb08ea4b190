package relay

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"otr_messaging/internal/api"
	"otr_messaging/internal/model"
	"otr_messaging/internal/repository/clients"
	"otr_messaging/internal/utils/log"
)

// Server is the development relay backend: a blind store-and-forward for
// envelopes and encrypted assets. It never sees plaintext.
type Server struct {
	addr     string
	registry *clients.Repo
	rdb      *redis.Client

	mu     sync.Mutex
	notify map[model.ClientID]*websocket.Conn
}

func NewServer(addr string, registry *clients.Repo, rdb *redis.Client) *Server {
	return &Server{
		addr:     addr,
		registry: registry,
		rdb:      rdb,
		notify:   make(map[model.ClientID]*websocket.Conn),
	}
}

func (s *Server) Run() error {
	r := mux.NewRouter()

	r.HandleFunc("/api/v1/access", s.handleAccess()).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/clients", s.handleRegisterClient()).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/clients/{clientId}/prekeys", s.handleRegisterPrekeys()).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/topics/{topicId}/clients", s.handleJoinTopic()).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/topics/{topicId}/prekeys", s.handleTopicPrekeys()).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/topics/{topicId}/visibility", s.handleVisibility()).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/topics/{topicId}/events", s.handlePostEnvelopes()).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/assets", s.handleRequestUpload()).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/assets/{assetId}", s.handleUploadAsset()).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/assets/{assetId}", s.handleDownloadAsset()).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/events/{clientId}", s.handleGetEvents()).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/users/{userId}", s.handleGetUser()).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/notify", s.handleNotify()).Methods(http.MethodGet)

	log.Info("relay listening", zap.String("addr", s.addr))
	return http.ListenAndServe(s.addr, r)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("write response failed", zap.Error(err))
	}
}

func (s *Server) handleAccess() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := make([]byte, 16)
		rand.Read(token)
		writeJSON(w, api.AccessToken{
			UserID:           model.UserID(r.Header.Get("X-User-Id")),
			ExpiresInSeconds: 900,
			Type:             "Bearer",
			Token:            hex.EncodeToString(token),
		})
	}
}

func (s *Server) handleRegisterClient() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.RegisterClientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		if req.ClientID == "" || req.UserID == "" {
			http.Error(w, "clientId and userId are required", http.StatusBadRequest)
			return
		}

		err := s.registry.Upsert(r.Context(), &clients.Client{
			ClientID: req.ClientID,
			UserID:   req.UserID,
			Name:     req.Name,
		})
		if err != nil {
			log.Error("register client failed", zap.Error(err))
			http.Error(w, "register client failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleRegisterPrekeys() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := model.ClientID(mux.Vars(r)["clientId"])

		var prekeys []model.Prekey
		if err := json.NewDecoder(r.Body).Decode(&prekeys); err != nil || len(prekeys) == 0 {
			http.Error(w, "bad prekeys body", http.StatusBadRequest)
			return
		}

		// the newest bundle wins; the relay keeps one per client
		if err := s.registry.SetPrekey(r.Context(), clientID, &prekeys[len(prekeys)-1]); err != nil {
			log.Error("register prekeys failed", zap.Error(err))
			http.Error(w, "register prekeys failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleJoinTopic() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topicID := model.TopicID(mux.Vars(r)["topicId"])

		var req struct {
			ClientID model.ClientID `json:"clientId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClientID == "" {
			http.Error(w, "bad join body", http.StatusBadRequest)
			return
		}

		if err := s.registry.JoinTopic(r.Context(), req.ClientID, topicID); err != nil {
			log.Error("join topic failed", zap.Error(err))
			http.Error(w, "join topic failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleTopicPrekeys() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topicID := model.TopicID(mux.Vars(r)["topicId"])
		requester := model.ClientID(r.Header.Get("X-Client-Id"))

		members, err := s.registry.ListByTopic(r.Context(), topicID)
		if err != nil {
			log.Error("list topic clients failed", zap.Error(err))
			http.Error(w, "list topic clients failed", http.StatusInternalServerError)
			return
		}

		var requesterUser model.UserID
		for _, member := range members {
			if member.ClientID == requester {
				requesterUser = member.UserID
			}
		}

		prekeys := model.TopicPrekeys{
			Me:         make(map[model.ClientID]*model.Prekey),
			Recipients: make(map[model.ClientID]*model.Prekey),
		}
		for _, member := range members {
			if member.UserID == requesterUser {
				prekeys.Me[member.ClientID] = member.Prekey
			} else {
				prekeys.Recipients[member.ClientID] = member.Prekey
			}
		}
		writeJSON(w, prekeys)
	}
}

func (s *Server) handleVisibility() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topicID := model.TopicID(mux.Vars(r)["topicId"])

		members, err := s.registry.ListByTopic(r.Context(), topicID)
		if err != nil {
			log.Error("list topic clients failed", zap.Error(err))
			http.Error(w, "list topic clients failed", http.StatusInternalServerError)
			return
		}

		visibility := api.MessageVisibility{}
		seen := make(map[model.UserID]bool)
		for _, member := range members {
			if seen[member.UserID] {
				continue
			}
			seen[member.UserID] = true
			if member.Prekey != nil {
				visibility.UsersReceiving = append(visibility.UsersReceiving, member.UserID)
			} else {
				visibility.UsersUnableToReceive = append(visibility.UsersUnableToReceive, member.UserID)
			}
		}
		writeJSON(w, visibility)
	}
}

func (s *Server) handlePostEnvelopes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var envelopes []model.Envelope
		if err := json.NewDecoder(r.Body).Decode(&envelopes); err != nil || len(envelopes) == 0 {
			http.Error(w, "bad envelopes body", http.StatusBadRequest)
			return
		}

		sender, err := s.registry.GetByClientID(ctx, envelopes[0].SenderClientID)
		if err != nil || sender == nil {
			http.Error(w, "unknown sending client", http.StatusBadRequest)
			return
		}

		eventID := model.EventID(primitive.NewObjectID().Hex())
		createdAt := time.Now().UTC()

		seen := make(map[model.UserID]bool)
		var receiving []model.UserID
		for _, envelope := range envelopes {
			event := model.EncryptedEvent{
				EventID:     eventID,
				CreatedAt:   createdAt,
				SendingUser: sender.UserID,
				Envelope:    envelope,
			}
			if err := s.pushEvent(ctx, envelope.RecipientClientID, event); err != nil {
				log.Error("queue event failed", zap.Error(err))
				http.Error(w, "queue event failed", http.StatusInternalServerError)
				return
			}

			recipient, err := s.registry.GetByClientID(ctx, envelope.RecipientClientID)
			if err == nil && recipient != nil && !seen[recipient.UserID] {
				seen[recipient.UserID] = true
				receiving = append(receiving, recipient.UserID)
			}
			s.wakeClient(envelope.RecipientClientID)
		}

		writeJSON(w, api.PostResponse{
			EventID:        eventID,
			CreatedAt:      createdAt,
			UsersReceiving: receiving,
		})
	}
}

func (s *Server) handleRequestUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assetID := model.AssetID(primitive.NewObjectID().Hex())
		writeJSON(w, api.AssetUploadSpec{
			URL:     fmt.Sprintf("http://%s/api/v1/assets/%s", s.addr, assetID),
			AssetID: assetID,
			FormFields: map[string]string{
				"assetId": string(assetID),
			},
		})
	}
}

func (s *Server) handleUploadAsset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assetID := model.AssetID(mux.Vars(r)["assetId"])

		file, _, err := r.FormFile("asset")
		if err != nil {
			http.Error(w, "missing asset form file", http.StatusBadRequest)
			return
		}
		defer file.Close()

		if err := s.putAsset(r.Context(), assetID, file); err != nil {
			log.Error("store asset failed", zap.Error(err))
			http.Error(w, "store asset failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleDownloadAsset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assetID := model.AssetID(mux.Vars(r)["assetId"])

		cipherText, err := s.getAsset(r.Context(), assetID)
		if err != nil {
			log.Error("load asset failed", zap.Error(err))
			http.Error(w, "load asset failed", http.StatusInternalServerError)
			return
		}
		if cipherText == nil {
			http.Error(w, "asset not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(cipherText)
	}
}

func (s *Server) handleGetEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := model.ClientID(mux.Vars(r)["clientId"])

		page, err := s.fetchEvents(r.Context(), clientID, r.URL.Query().Get("limit"))
		if err != nil {
			log.Error("fetch events failed", zap.Error(err))
			http.Error(w, "fetch events failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, page)
	}
}

func (s *Server) handleGetUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := model.UserID(mux.Vars(r)["userId"])

		name, err := s.registry.GetUserName(r.Context(), userID)
		if err != nil {
			log.Error("get user failed", zap.Error(err))
			http.Error(w, "get user failed", http.StatusInternalServerError)
			return
		}
		if name == "" {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		writeJSON(w, model.UserDetail{UserID: userID, Name: name})
	}
}

func (s *Server) handleNotify() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		clientID := model.ClientID(r.URL.Query().Get("clientId"))
		if clientID == "" {
			http.Error(w, "clientId cannot be empty", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "failed to upgrade", http.StatusInternalServerError)
			return
		}

		s.mu.Lock()
		if previous, ok := s.notify[clientID]; ok {
			previous.Close()
		}
		s.notify[clientID] = conn
		s.mu.Unlock()

		go s.drainNotify(clientID, conn)
	}
}

// drainNotify keeps the connection's read side alive and unregisters it on
// close. The relay only ever writes to notify sockets.
func (s *Server) drainNotify(clientID model.ClientID, conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Debug("notify socket closed", zap.Error(err))
			s.mu.Lock()
			if s.notify[clientID] == conn {
				delete(s.notify, clientID)
			}
			s.mu.Unlock()
			conn.Close()
			return
		}
	}
}

func (s *Server) wakeClient(clientID model.ClientID) {
	s.mu.Lock()
	conn, ok := s.notify[clientID]
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte("new-events")); err != nil {
		log.Debug("notify write failed", zap.Error(err))
	}
}
