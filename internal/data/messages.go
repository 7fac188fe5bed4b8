package data

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessagesStore manages per-conversation message logs. Each message is its
// own document, so an append is a single insert rather than a
// read-modify-write of the whole log.
type MessagesStore struct {
	// coll is a reference to the "messages" collection
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using the provided collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// Append inserts one message record into the conversation's log.
func (m *MessagesStore) Append(ctx context.Context, rec MessageRecord) error {
	if _, err := m.coll.InsertOne(ctx, rec); err != nil {
		return unavailable(err)
	}
	return nil
}

// List returns the conversation's full log ordered oldest first. Ordering is
// by caller-assigned sentAt with insertion order (_id) as the tie-break, so
// two records with the same timestamp keep a stable order.
func (m *MessagesStore) List(ctx context.Context, conversationID string) ([]MessageRecord, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "sentAt", Value: 1},
		{Key: "_id", Value: 1},
	})

	cursor, err := m.coll.Find(ctx, bson.M{"conversationId": conversationID}, opts)
	if err != nil {
		return nil, unavailable(err)
	}
	defer cursor.Close(ctx)

	var records []MessageRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, malformed(err)
	}
	return records, nil
}
