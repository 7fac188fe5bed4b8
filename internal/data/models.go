package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Message kinds. Photo messages carry the blob download URL as Content.
const (
	KindText  = "text"
	KindPhoto = "photo"
)

// User is the per-user root record in the users collection. UserKey is the
// safe key derived from the email and is the canonical identity everywhere
// else in the store.
type User struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"-"`
	UserKey   string        `bson:"userKey" json:"userKey"`
	Email     string        `bson:"email" json:"email"`
	FirstName string        `bson:"firstName" json:"firstName"`
	LastName  string        `bson:"lastName" json:"lastName"`
	Password  string        `bson:"password" json:"-"`
	CreatedAt time.Time     `bson:"createdAt" json:"-"`
	UpdatedAt time.Time     `bson:"updatedAt" json:"-"`
}

// DisplayName is the name shown in the directory and conversation previews.
func (u *User) DisplayName() string {
	return u.FirstName + " " + u.LastName
}

// DirectoryEntry is one row of the append-only user directory used for
// search/typeahead. Field names are part of the stored wire format.
type DirectoryEntry struct {
	DisplayName string `bson:"displayName" json:"displayName"`
	UserKey     string `bson:"userKey" json:"userKey"`
}

// LatestMessage is the denormalized preview embedded in a conversation
// summary. Both participants' copies must agree after every send.
type LatestMessage struct {
	Date   time.Time `bson:"date" json:"date"`
	Text   string    `bson:"text" json:"text"`
	IsRead bool      `bson:"isRead" json:"isRead"`
}

// ConversationSummary is one entry in a user's conversation index. Each 1:1
// conversation has two summaries, one per participant, sharing the same
// ConversationID; the peer fields point at the other side. OwnerKey is the
// storage address of the copy and is not part of the wire format.
type ConversationSummary struct {
	OwnerKey        string        `bson:"ownerKey" json:"-"`
	ConversationID  string        `bson:"conversationId" json:"conversationId"`
	PeerKey         string        `bson:"peerKey" json:"peerKey"`
	PeerDisplayName string        `bson:"peerDisplayName" json:"peerDisplayName"`
	LatestMessage   LatestMessage `bson:"latestMessage" json:"latestMessage"`
}

// MessageRecord is one message in a conversation's log. Append-only.
type MessageRecord struct {
	ConversationID string    `bson:"conversationId" json:"-"`
	MessageID      string    `bson:"messageId" json:"messageId"`
	SenderKey      string    `bson:"senderKey" json:"senderKey"`
	Kind           string    `bson:"kind" json:"kind"`
	Content        string    `bson:"content" json:"content"`
	SentAt         time.Time `bson:"sentAt" json:"sentAt"`
	IsRead         bool      `bson:"isRead" json:"isRead"`
}
