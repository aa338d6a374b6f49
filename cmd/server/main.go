package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/epw80/chat-archive-service/pkg/archiver"
	"github.com/epw80/chat-archive-service/pkg/config"
	"github.com/epw80/chat-archive-service/pkg/history"
	"github.com/epw80/chat-archive-service/pkg/index"
	"github.com/epw80/chat-archive-service/pkg/message"
	"github.com/epw80/chat-archive-service/pkg/provider"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	archiver *archiver.Archiver
	history  *history.Service
	index    index.ConversationIndex
	logger   *slog.Logger
}

func NewServer(a *archiver.Archiver, h *history.Service, idx index.ConversationIndex, logger *slog.Logger) *Server {
	return &Server{
		archiver: a,
		history:  h,
		index:    idx,
		logger:   logger,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.index.HealthCheck(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "degraded", "index": "unreachable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type archiveRunRequest struct {
	Hours []string `json:"hours"`
}

// handleArchiveRun triggers one archival run. The optional body lists
// explicit hour buckets for backfills; without it the run covers the
// past 24 hours. The response carries only the run's status string;
// per-bucket detail is in the logs.
func (s *Server) handleArchiveRun(w http.ResponseWriter, r *http.Request) {
	var req archiveRunRequest
	if r.Body != nil {
		// An empty body means "the default window"
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	status := s.archiver.ArchiveChatHistory(r.Context(), req.Hours)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": status})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := history.Query{
		Date:         r.URL.Query().Get("date"),
		TargetUserID: r.URL.Query().Get("targetUserId"),
		RequesterID:  r.URL.Query().Get("requesterId"),
	}
	if q.Date == "" || q.TargetUserID == "" || q.RequesterID == "" {
		http.Error(w, "date, targetUserId and requesterId are required", http.StatusBadRequest)
		return
	}

	msgs, err := s.history.HistoryByDate(r.Context(), q)
	if err != nil {
		s.logger.Error("history query failed",
			slog.String("date", q.Date),
			slog.String("error", err.Error()))
		http.Error(w, "failed to read history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msgs)
}

func (s *Server) handleFileMap(w http.ResponseWriter, r *http.Request) {
	userA := r.URL.Query().Get("userA")
	userB := r.URL.Query().Get("userB")
	chatType := message.Type(r.URL.Query().Get("type"))
	if chatType == "" {
		chatType = message.TypeChat
	}

	if userA == "" || userB == "" {
		http.Error(w, "userA and userB are required", http.StatusBadRequest)
		return
	}
	if chatType != message.TypeChat && chatType != message.TypeGroupChat {
		http.Error(w, "type must be chat or groupchat", http.StatusBadRequest)
		return
	}

	fm, err := s.history.FileMap(r.Context(), userA, userB, chatType)
	if err != nil {
		s.logger.Error("file map query failed",
			slog.String("error", err.Error()))
		http.Error(w, "failed to look up conversation files", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(fm)
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/archive/run", s.handleArchiveRun)
		r.Get("/history", s.handleHistory)
		r.Get("/conversations/files", s.handleFileMap)
	})
	return r
}

// runScheduler fires one archival run per day at the configured local
// hour until the context is cancelled.
func runScheduler(ctx context.Context, a *archiver.Archiver, hour int, logger *slog.Logger) {
	for {
		next := archiver.NextRun(time.Now(), hour, a.Location())
		logger.Info("next archival run scheduled",
			slog.Time("at", next))

		select {
		case <-time.After(time.Until(next)):
			logger.Info("starting daily chat archive")
			status := a.ArchiveChatHistory(ctx, nil)
			logger.Info("daily chat archive finished",
				slog.String("status", status))
		case <-ctx.Done():
			return
		}
	}
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger with configured level
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	logger.Info("loaded configuration",
		slog.String("port", cfg.Port),
		slog.String("archive_dir", cfg.ArchiveDir),
		slog.String("archive_timezone", cfg.ArchiveTimezone),
		slog.Int("archive_hour", cfg.ArchiveHour),
		slog.String("chat_api_base_url", cfg.ChatAPIBaseURL),
		slog.String("dynamodb_endpoint", cfg.DynamoDBEndpoint),
		slog.String("dynamodb_region", cfg.DynamoDBRegion),
		slog.String("log_level", cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Conversation index
	idx, err := index.NewDynamoDBIndex(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize conversation index",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Archiver and retrieval service
	prov := provider.NewClient(cfg, logger)
	arch, err := archiver.New(prov, idx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize archiver",
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	hist := history.New(cfg.ArchiveDir, idx, logger)

	srv := NewServer(arch, hist, idx, logger)

	// Daily archival schedule
	go runScheduler(ctx, arch, cfg.ArchiveHour, logger)

	// Setup HTTP server. The archival trigger responds only after the
	// full run, so the write timeout must cover a whole run.
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.setupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in goroutine
	go func() {
		logger.Info("starting server", slog.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Stop the scheduler
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	if err := idx.Close(); err != nil {
		logger.Error("failed to close conversation index", slog.String("error", err.Error()))
	}

	logger.Info("server exited")
}
