package app

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"docchat/internal/api/handlers"
	appMiddleware "docchat/internal/api/middlewares"
	"docchat/internal/config"
	"docchat/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *logrus.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, log *logrus.Logger, conv *services.ConversationService, docs *services.DocumentService) *Server {
	sessionHandler := handlers.NewSessionHandler(conv)
	documentHandler := handlers.NewDocumentHandler(conv, docs)
	chatHandler := handlers.NewChatHandler(conv)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(appMiddleware.RequestLogger(log))
	// No blanket timeout middleware: chat turns stream for as long as the
	// collaborator keeps talking.

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Serve the interactive page from the web directory
	fileServer := http.FileServer(http.Dir("./web"))
	r.Handle("/*", fileServer)

	// API routes
	r.Route("/api", func(api chi.Router) {
		api.Post("/sessions", sessionHandler.Create)
		api.Route("/sessions/{sessionID}", func(sr chi.Router) {
			sr.Get("/", sessionHandler.Get)
			sr.Delete("/", sessionHandler.Dispose)
			sr.Post("/document", documentHandler.Upload)
			sr.Post("/ask", chatHandler.Ask)
			sr.Post("/chat", chatHandler.Chat)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, log: log}
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Infof("HTTP server listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
