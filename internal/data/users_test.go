package data

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/albertstanley/messenger-backend/internal/db"
)

// testClient connects to the MongoDB named by MONGODB_URI or skips the test.
func testClient(t *testing.T) *db.Client {
	t.Helper()
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := db.New(ctx, uri)
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestUsersCreateAndLookup(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	// ensure clean collection and fresh indexes
	_ = c.UsersCollection().Drop(ctx)
	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}

	users := NewUsersStore(c.UsersCollection())

	u, err := users.CreateUser(ctx, "Ann", "Smith", "Ann@X.com", "hashed-pw")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if u.UserKey != "ann@x-com" {
		t.Fatalf("user key %q, want %q", u.UserKey, "ann@x-com")
	}
	if u.DisplayName() != "Ann Smith" {
		t.Fatalf("display name %q", u.DisplayName())
	}

	// lookup with different casing still matches
	got, err := users.GetUserByEmail(ctx, "ann@x.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got.UserKey != u.UserKey || got.FirstName != "Ann" {
		t.Fatalf("unexpected user: %+v", got)
	}

	// duplicate registration rejected by the unique index
	if _, err := users.CreateUser(ctx, "Ann", "Again", "ann@x.com", "pw"); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	// root-record existence probe
	ok, err := users.Exists(ctx, "ann@x-com")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	ok, err = users.Exists(ctx, "ghost@x-com")
	if err != nil || ok {
		t.Fatalf("Exists for ghost = %v, %v", ok, err)
	}
}

func TestUsersNotFound(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	_ = c.UsersCollection().Drop(ctx)
	users := NewUsersStore(c.UsersCollection())

	if _, err := users.GetUserByKey(ctx, "nobody@x-com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
