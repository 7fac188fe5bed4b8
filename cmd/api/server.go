package main

import (
	"context"
	"net/http"

	"github.com/albertstanley/messenger-backend/internal/auth"
	"github.com/albertstanley/messenger-backend/internal/blob"
	"github.com/albertstanley/messenger-backend/internal/chat"
	"github.com/albertstanley/messenger-backend/internal/data"
	"github.com/albertstanley/messenger-backend/internal/middleware"

	"github.com/gorilla/mux"
)

// The handler layer depends on these narrow interfaces rather than the
// concrete Mongo stores so tests can substitute in-memory fakes.

type usersStore interface {
	CreateUser(ctx context.Context, firstName, lastName, email, hashedPassword string) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
	GetUserByKey(ctx context.Context, userKey string) (*data.User, error)
	Exists(ctx context.Context, userKey string) (bool, error)
}

type directoryStore interface {
	Append(ctx context.Context, entry data.DirectoryEntry) error
	Search(ctx context.Context, prefix, excluding string) ([]data.DirectoryEntry, error)
}

type conversationsStore interface {
	List(ctx context.Context, ownerKey string) ([]data.ConversationSummary, error)
	Get(ctx context.Context, ownerKey, conversationID string) (*data.ConversationSummary, error)
	Delete(ctx context.Context, ownerKey, conversationID string) error
}

type messagesStore interface {
	List(ctx context.Context, conversationID string) ([]data.MessageRecord, error)
}

type fanoutEngine interface {
	Send(ctx context.Context, conversationID string, sender, peer chat.Participant, kind, content string) (data.MessageRecord, chat.SendStatus, error)
	CreateConversation(ctx context.Context, sender, peer chat.Participant, kind, content string) (string, data.MessageRecord, chat.SendStatus, error)
}

// Server holds the API's dependencies and implements its handlers.
type Server struct {
	users usersStore
	dir   directoryStore
	convs conversationsStore
	msgs  messagesStore
	chat  fanoutEngine
	auth  *auth.JWTManager
	hub   *EventHub
	blobs blob.Store
}

// newServer returns a ready-to-use Server wired with stores, the fan-out
// engine, auth manager, event hub and blob store.
func newServer(users usersStore, dir directoryStore, convs conversationsStore, msgs messagesStore, engine fanoutEngine, authMgr *auth.JWTManager, hub *EventHub, blobs blob.Store) *Server {
	return &Server{users: users, dir: dir, convs: convs, msgs: msgs, chat: engine, auth: authMgr, hub: hub, blobs: blobs}
}

// routes assembles the router. Register/login are rate-limited and
// unauthenticated; everything else requires a valid token.
func (s *Server) routes(limiter *middleware.LimiterStore) *mux.Router {
	r := mux.NewRouter()

	r.Handle("/v1/register", middleware.RateLimit(limiter, http.HandlerFunc(s.handleRegister))).Methods(http.MethodPost)
	r.Handle("/v1/login", middleware.RateLimit(limiter, http.HandlerFunc(s.handleLogin))).Methods(http.MethodPost)

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(s.requireAuth)
	api.HandleFunc("/users", s.handleSearchUsers).Methods(http.MethodGet)
	api.HandleFunc("/users/{key}/picture", s.handleGetProfilePicture).Methods(http.MethodGet)
	api.HandleFunc("/profile/picture", s.handleUploadProfilePicture).Methods(http.MethodPost)
	api.HandleFunc("/conversations", s.handleListConversations).Methods(http.MethodGet)
	api.HandleFunc("/conversations", s.handleCreateConversation).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}", s.handleDeleteConversation).Methods(http.MethodDelete)
	api.HandleFunc("/conversations/{id}/messages", s.handleListMessages).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id}/messages", s.handleSendMessage).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}/photos", s.handleSendPhoto).Methods(http.MethodPost)
	api.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	return r
}
