package data

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ConversationsStore manages per-user conversation indexes. Each summary is
// its own document keyed by (ownerKey, conversationId), so updating one
// side's preview is a single-document write and cannot clobber concurrent
// updates to other summaries. A compound unique index guards the pair.
type ConversationsStore struct {
	// coll is a reference to the "conversations" collection
	coll *mongo.Collection
}

// NewConversationsStore returns a ConversationsStore using the provided collection.
func NewConversationsStore(coll *mongo.Collection) *ConversationsStore {
	return &ConversationsStore{coll: coll}
}

// CreateSummary inserts one participant's copy of a conversation summary.
// ErrExists signals that this owner already has a summary for the id.
func (c *ConversationsStore) CreateSummary(ctx context.Context, summary ConversationSummary) error {
	if _, err := c.coll.InsertOne(ctx, summary); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrExists
		}
		return unavailable(err)
	}
	return nil
}

// UpdateLatest overwrites the latestMessage preview of one owner's summary.
// ErrNotFound signals index/log drift: the message log has a conversation
// this owner's index does not.
func (c *ConversationsStore) UpdateLatest(ctx context.Context, ownerKey, conversationID string, latest LatestMessage) error {
	filter := bson.M{"ownerKey": ownerKey, "conversationId": conversationID}
	update := bson.M{"$set": bson.M{"latestMessage": latest}}

	result, err := c.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return unavailable(err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns one owner's summary for a conversation.
func (c *ConversationsStore) Get(ctx context.Context, ownerKey, conversationID string) (*ConversationSummary, error) {
	var summary ConversationSummary
	filter := bson.M{"ownerKey": ownerKey, "conversationId": conversationID}
	if err := c.coll.FindOne(ctx, filter).Decode(&summary); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	return &summary, nil
}

// List returns the owner's full conversation index, most recent preview first.
func (c *ConversationsStore) List(ctx context.Context, ownerKey string) ([]ConversationSummary, error) {
	opts := options.Find().SetSort(bson.M{"latestMessage.date": -1})

	cursor, err := c.coll.Find(ctx, bson.M{"ownerKey": ownerKey}, opts)
	if err != nil {
		return nil, unavailable(err)
	}
	defer cursor.Close(ctx)

	var summaries []ConversationSummary
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, malformed(err)
	}
	return summaries, nil
}

// Delete removes the owner's copy of a summary. The peer's copy and the
// message log are deliberately untouched: conversation removal is
// asymmetric, the other participant keeps their view and the full history.
func (c *ConversationsStore) Delete(ctx context.Context, ownerKey, conversationID string) error {
	filter := bson.M{"ownerKey": ownerKey, "conversationId": conversationID}
	result, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return unavailable(err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
