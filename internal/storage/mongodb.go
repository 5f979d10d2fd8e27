package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"mediaqa/internal/core"
)

const mongoDisconnectTimeout = 5 * time.Second

// NewMongoDB connects, pings and selects the configured database.
func NewMongoDB(ctx context.Context, cfg MongoDBConfig) (*Storage, error) {
	if cfg.URL == "" {
		return nil, core.NewConfigurationError("MongoDB URL is required", nil)
	}
	name := cfg.Database
	if name == "" {
		name = DefaultConfig().MongoDB.Database
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = closeMongo(client)
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}
	return &Storage{kind: TypeMongoDB, mongo: client, mongoDB: client.Database(name)}, nil
}

func closeMongo(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}
