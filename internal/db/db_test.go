package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// The driver validates index key documents before dialing: a multi-key map
// is rejected client-side because its field order is undefined. This test
// needs no running MongoDB — it points at a dead port and checks the only
// failure is server selection, not key encoding.
func TestCreateIndexesKeysEncodeOrdered(t *testing.T) {
	opts := options.Client().
		ApplyURI("mongodb://127.0.0.1:1").
		SetServerSelectionTimeout(200 * time.Millisecond)
	mc, err := mongo.Connect(opts)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()

	c := &Client{client: mc, db: mc.Database("messenger_db")}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = c.CreateIndexes(ctx)
	if err == nil {
		t.Fatal("expected server selection to fail against a dead port")
	}
	var mapErr mongo.ErrMapForOrderedArgument
	if errors.As(err, &mapErr) {
		t.Fatalf("index keys rejected before reaching the server: %v", err)
	}
}

func TestNewAndCreateIndexes(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := New(ctx, uri)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = c.Close(context.Background()) }()

	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}
	// idempotent on a second run
	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes second run failed: %v", err)
	}

	for name, coll := range map[string]any{
		"users":         c.UsersCollection(),
		"directory":     c.DirectoryCollection(),
		"conversations": c.ConversationsCollection(),
		"messages":      c.MessagesCollection(),
	} {
		if coll == nil {
			t.Fatalf("%s collection is nil", name)
		}
	}
}
