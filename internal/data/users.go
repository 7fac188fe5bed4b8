// Package data provides the typed store layer over the document database:
// user root records, the append-only directory, per-user conversation
// indexes and per-conversation message logs.
package data

import (
	"context"
	"errors"
	"time"

	"github.com/albertstanley/messenger-backend/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// UsersStore performs operations on per-user root records.
type UsersStore struct {
	// coll is a reference to the "users" collection
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// CreateUser inserts a new root record. The user key is derived from the
// email; a unique index on userKey rejects duplicate registration with
// ErrExists. The password must already be hashed by the caller.
func (u *UsersStore) CreateUser(ctx context.Context, firstName, lastName, email, hashedPassword string) (*User, error) {
	now := time.Now()
	user := &User{
		UserKey:   normalize.SafeKey(email),
		Email:     normalize.Email(email),
		FirstName: firstName,
		LastName:  lastName,
		Password:  hashedPassword,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := u.coll.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrExists
		}
		return nil, unavailable(err)
	}

	user.ID = result.InsertedID.(bson.ObjectID)
	return user, nil
}

// GetUserByEmail finds a root record by email. The lookup goes through the
// derived user key so mixed-case input still matches stored records.
func (u *UsersStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return u.GetUserByKey(ctx, normalize.SafeKey(email))
}

// GetUserByKey finds a root record by user key.
func (u *UsersStore) GetUserByKey(ctx context.Context, userKey string) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"userKey": userKey}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	return &user, nil
}

// Exists reports whether a root record is present for the key. Note this
// probes the users collection, not the directory list: the two can diverge
// if a registration half-failed, and this probe is the authority for "can
// this user receive messages".
func (u *UsersStore) Exists(ctx context.Context, userKey string) (bool, error) {
	count, err := u.coll.CountDocuments(ctx, bson.M{"userKey": userKey})
	if err != nil {
		return false, unavailable(err)
	}
	return count > 0, nil
}
