package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/albertstanley/messenger-backend/internal/auth"
	"github.com/albertstanley/messenger-backend/internal/blob"
	"github.com/albertstanley/messenger-backend/internal/chat"
	"github.com/albertstanley/messenger-backend/internal/data"
	"github.com/albertstanley/messenger-backend/internal/db"
	"github.com/albertstanley/messenger-backend/internal/middleware"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env if present; real deployments set env directly.
	_ = godotenv.Load()

	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		log.Fatal("MONGODB_URI must be set")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	blobDir := os.Getenv("BLOB_DIR")
	if blobDir == "" {
		blobDir = "./blobs"
	}
	blobBaseURL := os.Getenv("BLOB_BASE_URL")
	if blobBaseURL == "" {
		blobBaseURL = fmt.Sprintf("http://localhost:%s/files", port)
	}

	ctx := context.Background()

	// Initialize database
	dbClient, err := db.New(ctx, mongoURI)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	defer func() {
		_ = dbClient.Close(ctx)
	}()

	// Ensure indexes exist
	if err := dbClient.CreateIndexes(ctx); err != nil {
		log.Fatalf("failed to create indexes: %v", err)
	}

	// Create stores
	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	dirStore := data.NewDirectoryStore(dbClient.DirectoryCollection())
	convsStore := data.NewConversationsStore(dbClient.ConversationsCollection())
	msgsStore := data.NewMessagesStore(dbClient.MessagesCollection())

	// Blob store for avatars and photo messages
	blobStore, err := blob.NewDiskStore(blobDir, blobBaseURL)
	if err != nil {
		log.Fatalf("failed to init blob store: %v", err)
	}

	// Auth manager (tokens valid for 24 hours)
	jwtMgr := auth.NewJWTManager(jwtSecret, 24*time.Hour)

	// Event hub for live subscriptions; it doubles as the fan-out notifier.
	hub := NewEventHub()

	// Fan-out engine over the typed stores
	engine := chat.NewEngine(msgsStore, convsStore, hub)

	// Rate limiter for register/login. RATE_LIMIT_RPM controls requests per
	// minute for these endpoints.
	rateRPM := 10
	if v := os.Getenv("RATE_LIMIT_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rateRPM = n
		}
	}
	limiterStore := middleware.NewLimiterStore(rateRPM, 3, 1*time.Minute)
	defer limiterStore.Stop()

	srv := newServer(usersStore, dirStore, convsStore, msgsStore, engine, jwtMgr, hub, blobStore)
	router := srv.routes(limiterStore)

	// Serve uploaded blobs under /files/
	router.PathPrefix("/files/").Handler(http.StripPrefix("/files/", http.FileServer(http.Dir(blobDir))))

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	certFile := os.Getenv("TLS_CERT")
	keyFile := os.Getenv("TLS_KEY")

	go func() {
		log.Printf("API server listening on %s", httpServer.Addr)
		var err error
		if certFile != "" && keyFile != "" {
			err = httpServer.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server exit: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
