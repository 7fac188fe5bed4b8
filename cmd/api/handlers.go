package main

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/albertstanley/messenger-backend/internal/auth"
	"github.com/albertstanley/messenger-backend/internal/blob"
	"github.com/albertstanley/messenger-backend/internal/chat"
	"github.com/albertstanley/messenger-backend/internal/data"
	"github.com/albertstanley/messenger-backend/internal/normalize"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// maxPhotoBytes caps photo message uploads.
const maxPhotoBytes = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// storeStatus maps store errors onto HTTP status codes.
func storeStatus(err error) int {
	switch {
	case errors.Is(err, data.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, data.ErrExists):
		return http.StatusConflict
	case errors.Is(err, data.ErrMalformed):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	UserKey   string    `json:"userKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// handleRegister creates the root record, appends the directory entry and
// returns a session token.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FirstName == "" || req.LastName == "" || req.Password == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "firstName, lastName, email and password are required")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := s.users.CreateUser(r.Context(), req.FirstName, req.LastName, req.Email, hashed)
	if err != nil {
		if errors.Is(err, data.ErrExists) {
			writeError(w, http.StatusConflict, "user already exists")
			return
		}
		log.Printf("create user failed: %v", err)
		writeError(w, storeStatus(err), "failed to create user")
		return
	}

	// The directory append is a second uncoordinated write. If it fails the
	// account still exists and can log in; it just won't show up in search
	// until re-registered data is repaired. Logged, not surfaced.
	entry := data.DirectoryEntry{DisplayName: user.DisplayName(), UserKey: user.UserKey}
	if err := s.dir.Append(r.Context(), entry); err != nil {
		log.Printf("directory append for %s failed: %v", user.UserKey, err)
	}

	token, expiresAt, err := s.auth.GenerateToken(user.UserKey, user.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token, UserKey: user.UserKey, ExpiresAt: expiresAt})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin authenticates a user and returns a session token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, storeStatus(err), "failed to look up user")
		return
	}

	if err := auth.CheckPassword(user.Password, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expiresAt, err := s.auth.GenerateToken(user.UserKey, user.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, UserKey: user.UserKey, ExpiresAt: expiresAt})
}

// handleSearchUsers runs a directory prefix search, excluding the caller.
func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	entries, err := s.dir.Search(r.Context(), r.URL.Query().Get("q"), claims.UserKey)
	if err != nil {
		writeError(w, storeStatus(err), "search failed")
		return
	}
	if entries == nil {
		entries = []data.DirectoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleListConversations returns the caller's conversation index, most
// recent first.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	summaries, err := s.convs.List(r.Context(), claims.UserKey)
	if err != nil {
		writeError(w, storeStatus(err), "failed to list conversations")
		return
	}
	if summaries == nil {
		summaries = []data.ConversationSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

type createConversationRequest struct {
	PeerKey string `json:"peerKey"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

type sendResponse struct {
	ConversationID string             `json:"conversationId"`
	Message        data.MessageRecord `json:"message"`
	Status         chat.SendStatus    `json:"status"`
}

// handleCreateConversation starts a new conversation with its first message.
func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" || req.PeerKey == "" {
		writeError(w, http.StatusBadRequest, "peerKey and content are required")
		return
	}
	if req.Kind == "" {
		req.Kind = data.KindText
	}

	// Normalize at the boundary; a caller that passed a raw email still
	// addresses the same record.
	peerKey := normalize.SafeKey(req.PeerKey)

	exists, err := s.users.Exists(r.Context(), peerKey)
	if err != nil {
		writeError(w, storeStatus(err), "failed to verify recipient")
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "recipient not found")
		return
	}

	sender, peer, err := s.participants(r, claims.UserKey, peerKey)
	if err != nil {
		writeError(w, storeStatus(err), "failed to resolve participants")
		return
	}

	convID, rec, status, err := s.chat.CreateConversation(r.Context(), sender, peer, req.Kind, req.Content)
	if err != nil {
		log.Printf("create conversation %s failed: %v (status %+v)", convID, err, status)
		writeJSON(w, http.StatusBadGateway, sendResponse{ConversationID: convID, Message: rec, Status: status})
		return
	}
	writeJSON(w, http.StatusCreated, sendResponse{ConversationID: convID, Message: rec, Status: status})
}

type sendMessageRequest struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// handleSendMessage appends to an existing conversation and fans the
// preview out to both participants. A partially-synced send still returns
// the message: it is durably stored, only a preview is stale, and the
// status field says which one.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	convID := mux.Vars(r)["id"]

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.Kind == "" {
		req.Kind = data.KindText
	}

	// Content is stored verbatim; escaping is the rendering client's job.
	s.deliver(w, r, claims, convID, req.Kind, req.Content)
}

// handleSendPhoto uploads the request body to the blob store and sends the
// resulting URL as a photo message.
func (s *Server) handleSendPhoto(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	convID := mux.Vars(r)["id"]

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPhotoBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "photo too large")
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty photo")
		return
	}

	url, err := s.blobs.Upload(r.Context(), blob.MessageImagePath(uuid.NewString()), body)
	if err != nil {
		log.Printf("photo upload failed: %v", err)
		writeError(w, http.StatusBadGateway, "photo upload failed")
		return
	}

	s.deliver(w, r, claims, convID, data.KindPhoto, url)
}

// deliver resolves the conversation's participants from the caller's own
// summary and runs the fan-out.
func (s *Server) deliver(w http.ResponseWriter, r *http.Request, claims *auth.Claims, convID, kind, content string) {
	summary, err := s.convs.Get(r.Context(), claims.UserKey, convID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, storeStatus(err), "failed to load conversation")
		return
	}

	me, err := s.users.GetUserByKey(r.Context(), claims.UserKey)
	if err != nil {
		writeError(w, storeStatus(err), "failed to resolve sender")
		return
	}

	sender := chat.Participant{Key: claims.UserKey, DisplayName: me.DisplayName()}
	peer := chat.Participant{Key: summary.PeerKey, DisplayName: summary.PeerDisplayName}

	rec, status, err := s.chat.Send(r.Context(), convID, sender, peer, kind, content)
	if !status.MessageStored {
		log.Printf("send to %s failed: %v", convID, err)
		writeError(w, http.StatusBadGateway, "failed to store message")
		return
	}
	if err != nil {
		// Message stored, preview sync pending on at least one side.
		log.Printf("send to %s partially synced: %v (status %+v)", convID, err, status)
	}
	writeJSON(w, http.StatusOK, sendResponse{ConversationID: convID, Message: rec, Status: status})
}

// handleListMessages returns a conversation's full ordered log. Access is
// not gated on owning an index entry: a participant who deleted their own
// summary can still read the history, matching the asymmetric-delete
// semantics.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	convID := mux.Vars(r)["id"]

	records, err := s.msgs.List(r.Context(), convID)
	if err != nil {
		writeError(w, storeStatus(err), "failed to list messages")
		return
	}
	if records == nil {
		records = []data.MessageRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleDeleteConversation removes the caller's own summary only; the
// peer's copy and the message log are untouched.
func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	convID := mux.Vars(r)["id"]

	if err := s.convs.Delete(r.Context(), claims.UserKey, convID); err != nil {
		if errors.Is(err, data.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, storeStatus(err), "failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadProfilePicture stores the caller's avatar under the
// well-known path and returns its URL.
func (s *Server) handleUploadProfilePicture(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPhotoBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "picture too large")
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty picture")
		return
	}

	url, err := s.blobs.Upload(r.Context(), blob.ProfilePicturePath(claims.UserKey), body)
	if err != nil {
		log.Printf("profile picture upload failed: %v", err)
		writeError(w, http.StatusBadGateway, "upload failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// handleGetProfilePicture returns the avatar URL for a user key.
func (s *Server) handleGetProfilePicture(w http.ResponseWriter, r *http.Request) {
	key := normalize.SafeKey(mux.Vars(r)["key"])

	url, err := s.blobs.DownloadURL(r.Context(), blob.ProfilePicturePath(key))
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no profile picture")
			return
		}
		writeError(w, http.StatusBadGateway, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// participants resolves both sides' keys and display names from the users
// collection.
func (s *Server) participants(r *http.Request, senderKey, peerKey string) (chat.Participant, chat.Participant, error) {
	me, err := s.users.GetUserByKey(r.Context(), senderKey)
	if err != nil {
		return chat.Participant{}, chat.Participant{}, err
	}
	peer, err := s.users.GetUserByKey(r.Context(), peerKey)
	if err != nil {
		return chat.Participant{}, chat.Participant{}, err
	}
	return chat.Participant{Key: me.UserKey, DisplayName: me.DisplayName()},
		chat.Participant{Key: peer.UserKey, DisplayName: peer.DisplayName()}, nil
}
