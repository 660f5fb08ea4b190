package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"otr_messaging/internal/api"
	"otr_messaging/internal/config"
	"otr_messaging/internal/model"
	"otr_messaging/internal/service/otr"
	"otr_messaging/internal/session"
	"otr_messaging/internal/storage"
	"otr_messaging/internal/utils/log"
)

func main() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "Usage: client <userId> <clientId> <topicId> [config.toml]")
		os.Exit(1)
	}

	userID := model.UserID(os.Args[1])
	clientID := model.ClientID(os.Args[2])
	topicID := model.TopicID(os.Args[3])

	cfg := config.Default()
	if len(os.Args) > 4 {
		var err error
		cfg, err = config.Load(os.Args[4])
		if err != nil {
			log.Fatal("load config failed", zap.Error(err))
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: "", // no password by default
		DB:       0,  // use default DB
	})

	// one store file per device, so two clients on one machine don't
	// share plaintext history
	store, err := storage.OpenBolt(fmt.Sprintf("%s-%s", clientID, cfg.StorePath))
	if err != nil {
		log.Fatal("open local store failed", zap.Error(err))
	}
	defer store.Close()

	me, err := session.LoadOrCreateIdentity(fmt.Sprintf("%s.identity.json", clientID), userID, clientID, string(userID))
	if err != nil {
		log.Fatal("load identity failed", zap.Error(err))
	}

	box := session.NewBox(me, session.NewRedisStateStore(rdb, cfg.SessionTTL()))
	apiClient := api.NewHTTPClient(cfg.BackendHost, userID, clientID, nil)

	ctx := context.Background()
	if _, err := apiClient.GetAccessToken(ctx); err != nil {
		log.Fatal("get access token failed", zap.Error(err))
	}
	if err := apiClient.RegisterClient(ctx, api.RegisterClientRequest{
		ClientID: clientID,
		UserID:   userID,
		Name:     me.Name,
	}); err != nil {
		log.Fatal("register client failed", zap.Error(err))
	}
	if err := apiClient.JoinTopic(ctx, topicID, clientID); err != nil {
		log.Fatal("join topic failed", zap.Error(err))
	}

	var wake <-chan struct{}
	notify, err := api.DialNotifySocket(cfg.BackendHost, clientID)
	if err != nil {
		log.Warn("notify socket unavailable, falling back to polling", zap.Error(err))
	} else {
		wake = notify.Wake()
		defer notify.Close()
	}

	cache := storage.NewRedisAssetCache(rdb, cfg.AssetCacheTTL())
	app, err := otr.NewApp(me, apiClient, box, store, cache, otr.Options{
		SyncInterval: cfg.SyncInterval(),
		Wake:         wake,
	})
	if err != nil {
		log.Fatal("cannot init app", zap.Error(err))
	}

	ui := newChatUI(app, topicID)
	ui.Run()

	app.Stop()
}
