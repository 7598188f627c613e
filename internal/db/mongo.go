package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names of the document store.
const (
	ConversationsCollection  = "conversations"
	MessagesCollection       = "messages"
	StrangerGiftsCollection  = "stranger_gifts"
	SystemMessagesCollection = "system_messages"
	SystemReadsCollection    = "system_reads"
)

// StrangerGiftTTL is how long a stranger gift ledger entry lives after creation.
const StrangerGiftTTL = 30 * 24 * time.Hour

// ConnectMongo connects to the document store holding conversations, messages, the
// stranger gift ledger and system messages, and ensures its indexes.
func ConnectMongo(ctx context.Context, uri, database string, log zerolog.Logger) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	if err := EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, err
	}
	log.Info().Str("database", database).Msg("mongo indexes ensured")
	return client, db, nil
}

// EnsureIndexes creates the indexes every collection relies on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	collections := map[string][]mongo.IndexModel{
		ConversationsCollection: {
			{
				Keys:    bson.D{{Key: "pair_key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "last_message_at", Value: -1}}},
		},
		MessagesCollection: {
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "is_read", Value: 1}}},
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		StrangerGiftsCollection: {
			{
				Keys:    bson.D{{Key: "receiver_id", Value: 1}, {Key: "sender_id", Value: 1}, {Key: "gift_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "updated_at", Value: -1}}},
			{
				Keys:    bson.D{{Key: "created_at", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(int32(StrangerGiftTTL / time.Second)),
			},
		},
		SystemMessagesCollection: {
			{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "sender_type", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		SystemReadsCollection: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}

	for name, indexes := range collections {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("create indexes for %s: %w", name, err)
		}
	}
	return nil
}
