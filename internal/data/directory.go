package data

import (
	"context"
	"regexp"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DirectoryStore manages the flat append-only search directory. Entries are
// never updated or deleted, and Append performs no duplicate check:
// registering the same key twice yields two entries. Account uniqueness is
// enforced by the users collection instead.
type DirectoryStore struct {
	// coll is a reference to the "directory" collection
	coll *mongo.Collection
}

// NewDirectoryStore returns a DirectoryStore using the provided collection.
func NewDirectoryStore(coll *mongo.Collection) *DirectoryStore {
	return &DirectoryStore{coll: coll}
}

// Append adds one entry to the directory.
func (d *DirectoryStore) Append(ctx context.Context, entry DirectoryEntry) error {
	if _, err := d.coll.InsertOne(ctx, entry); err != nil {
		return unavailable(err)
	}
	return nil
}

// Search returns entries whose display name starts with prefix
// (case-insensitive), excluding the caller's own key. Results come back in
// display-name order.
func (d *DirectoryStore) Search(ctx context.Context, prefix, excluding string) ([]DirectoryEntry, error) {
	filter := bson.M{
		"displayName": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix), "$options": "i"},
		"userKey":     bson.M{"$ne": excluding},
	}
	opts := options.Find().SetSort(bson.M{"displayName": 1})

	cursor, err := d.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, unavailable(err)
	}
	defer cursor.Close(ctx)

	var entries []DirectoryEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, malformed(err)
	}
	return entries, nil
}
