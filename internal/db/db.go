// Package db manages MongoDB connections and collections.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Client wraps mongo.Client and exposes the messenger collections.
type Client struct {
	// client is the underlying MongoDB connection (thread-safe, reusable)
	client *mongo.Client

	// db is the "messenger_db" database; all collections hang off it
	db *mongo.Database
}

// New connects to MongoDB, verifies the connection with a ping and returns a
// Client.
func New(ctx context.Context, mongoURI string) (*Client, error) {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping is the actual connection test; Connect alone does not dial.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database("messenger_db"),
	}, nil
}

// UsersCollection returns the per-user root record collection.
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

// DirectoryCollection returns the append-only search directory collection.
func (c *Client) DirectoryCollection() *mongo.Collection {
	return c.db.Collection("directory")
}

// ConversationsCollection returns the conversation summary collection.
func (c *Client) ConversationsCollection() *mongo.Collection {
	return c.db.Collection("conversations")
}

// MessagesCollection returns the message log collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection("messages")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the store layer relies on. Safe to call
// on every startup; Mongo treats existing identical indexes as a no-op.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// Unique user key: duplicate registration is rejected here, not in the
	// directory (the directory stays append-only with no constraint).
	usersIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "userKey", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := c.UsersCollection().Indexes().CreateOne(ctx, usersIndex); err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	// Prefix search scans displayName; keep it indexed.
	directoryIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "displayName", Value: 1}},
	}
	if _, err := c.DirectoryCollection().Indexes().CreateOne(ctx, directoryIndex); err != nil {
		return fmt.Errorf("failed to create directory index: %w", err)
	}

	// One summary document per (owner, conversation). The unique pair is what
	// makes preview updates single-document conditional writes.
	// Index keys are ordered, so they must be bson.D: the driver rejects
	// multi-key maps before the request ever reaches the server.
	conversationIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "ownerKey", Value: 1}, {Key: "conversationId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// List sorts the owner's index by preview recency.
			Keys: bson.D{{Key: "ownerKey", Value: 1}, {Key: "latestMessage.date", Value: -1}},
		},
	}
	if _, err := c.ConversationsCollection().Indexes().CreateMany(ctx, conversationIndexes); err != nil {
		return fmt.Errorf("failed to create conversation indexes: %w", err)
	}

	// Log listing sorts by (conversationId, sentAt).
	messagesIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "sentAt", Value: 1}},
	}
	if _, err := c.MessagesCollection().Indexes().CreateOne(ctx, messagesIndex); err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	return nil
}
