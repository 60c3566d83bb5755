package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/codocs/go-codocs/internal/config"
	"github.com/codocs/go-codocs/internal/database"
	"github.com/codocs/go-codocs/internal/server"
	"github.com/gorilla/handlers"
	"github.com/teris-io/shortid"
)

type CoDocsApp struct {
	log             *log.Logger
	db              database.DocumentRepository
	srv             *http.Server
	ds              *server.DocServer
	signingKey      []byte
	allowedOrigins  []string
	generateShortId func() (string, error)
}

func NewCoDocsApp(mux *http.ServeMux, logger *log.Logger, ds *server.DocServer, db database.DocumentRepository, cfg *config.Config) *CoDocsApp {
	s := &CoDocsApp{
		log:             logger,
		db:              db,
		ds:              ds,
		signingKey:      cfg.SigningKey,
		allowedOrigins:  cfg.AllowedOrigins,
		generateShortId: shortid.Generate,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("/api/account", s.authMiddleware(s.account))
	mux.Handle("GET /api/documents", s.authMiddleware(s.listDocuments))
	mux.Handle("POST /api/documents", s.authMiddleware(s.createDocument))
	mux.Handle("PUT /api/documents", s.authMiddleware(s.updateDocument))
	mux.Handle("DELETE /api/documents", s.authMiddleware(s.deleteDocument))
	mux.Handle("GET /api/documents/get", s.authMiddleware(s.getDocument))
	mux.Handle("GET /api/documents/join", s.authMiddleware(s.joinDocument))
	mux.Handle("POST /api/documents/share", s.authMiddleware(s.shareDocument))
	mux.Handle("GET /api/documents/shared", s.authMiddleware(s.listSharedDocuments))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *CoDocsApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *CoDocsApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
