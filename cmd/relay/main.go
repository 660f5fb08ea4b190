package main

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"otr_messaging/internal/config"
	"otr_messaging/internal/repository/clients"
	"otr_messaging/internal/service/relay"
	"otr_messaging/internal/utils/log"
)

func main() {
	cfg := config.Default()
	if len(os.Args) > 1 {
		var err error
		cfg, err = config.Load(os.Args[1])
		if err != nil {
			log.Fatal("load config failed", zap.Error(err))
		}
	}

	mongoDBClient, err := initMongo(cfg.MongoURI)
	if err != nil {
		log.Fatal("connect mongo failed", zap.Error(err))
	}
	db := mongoDBClient.Database(cfg.MongoDatabase)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: "", // no password by default
		DB:       0,  // use default DB
	})

	registry := clients.NewRepo(db)
	server := relay.NewServer(cfg.RelayListen, registry, rdb)

	if err := server.Run(); err != nil {
		log.Fatal("relay server stopped", zap.Error(err))
	}
}

func initMongo(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, client.Ping(ctx, nil)
}
