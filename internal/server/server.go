package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ehr-chatbot/internal/config"
	"ehr-chatbot/internal/handlers"
	"ehr-chatbot/internal/metrics"
	"ehr-chatbot/internal/repositories"
	"ehr-chatbot/internal/routes"
	"ehr-chatbot/internal/services"
	"ehr-chatbot/internal/workers"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ServiceName is reported by the banner endpoint
const ServiceName = "ehr-chatbot"

// Server owns the HTTP listener, background workers and backend connections
type Server struct {
	cfg        *config.Config
	logger     *zap.SugaredLogger
	httpServer *http.Server
	pool       *workers.WorkerPool
	closers    []func() error
}

// NewServer wires every component from configuration. Only a session store failure is
// fatal; an unreachable knowledge base, embedding service or LLM degrades the answers.
func NewServer(ctx context.Context, cfg *config.Config, version string, logger *zap.SugaredLogger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{cfg: cfg, logger: logger, pool: workers.NewWorkerPool()}

	// 1. Session store
	sessions, err := s.initializeSessionStore(ctx)
	if err != nil {
		s.close()
		return nil, err
	}

	// 2. Knowledge base and embeddings
	kb := NewKnowledgeBase(ctx, cfg, logger)
	s.closers = append(s.closers, kb.Close)

	embedder, err := NewEmbedder(cfg, logger)
	if err != nil {
		s.close()
		return nil, err
	}

	// 3. Generative backend
	llm := services.NewLLMService(services.LLMConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)
	if llm.Configured() {
		logger.Infof("✅ LLM backend configured (model: %s)", cfg.LLM.Model)
	} else {
		logger.Warn("⚠️  No LLM API key configured, fallback answers and educational notes are disabled")
		logger.Info("   Hint: set EHR_LLM_API_KEY or OPENAI_API_KEY")
	}

	// 4. Pipeline services
	registry := services.NewConditionRegistry(kb, nil, cfg.Registry.TTL, logger)
	retriever := services.NewKnowledgeRetriever(embedder, kb, services.RetrieverConfig{
		Timeout:     cfg.Pipeline.RetrievalTimeout,
		SearchLimit: cfg.Pipeline.SearchLimit,
		CacheTTL:    cfg.Pipeline.CacheTTL,
	}, logger)
	synthesizer := services.NewFallbackSynthesizer(llm, services.SynthesizerConfig{
		Model:        cfg.LLM.Model,
		Language:     cfg.LLM.Language,
		HistoryTurns: cfg.Pipeline.HistoryTurns,
	}, logger)
	educator := services.NewEducationalNoteGenerator(llm, cfg.LLM.Model, cfg.LLM.Language, logger)

	conversation := services.NewConversationService(services.ConversationDeps{
		Sessions:    sessions,
		Registry:    registry,
		Retriever:   retriever,
		Synthesizer: synthesizer,
		Educator:    educator,
		Keywords:    services.NewKeywordExtractor(),
		Thresholds:  cfg.Classifier,
		Messages:    cfg.Messages,
		MaxQuery:    cfg.Pipeline.MaxQueryLength,
		Logger:      logger,
	})

	if cfg.Registry.RefreshInterval > 0 {
		refreshConfig := workers.DefaultWorkerConfig("registry-refresh")
		refreshConfig.PollInterval = cfg.Registry.RefreshInterval
		refreshConfig.ShutdownTimeout = 5 * time.Second
		s.pool.AddWorker(workers.NewRegistryRefreshWorker(refreshConfig, registry, logger))
	}

	// 5. HTTP
	probes := []handlers.HealthProbe{
		{Name: "session_store", Critical: true, Check: sessions.Ping},
		{Name: "knowledge_base", Check: kb.Ping},
		{Name: "embedding", Check: embedder.HealthCheck},
		{Name: "llm", Check: llm.HealthCheck},
	}

	h := &routes.Handlers{
		Basic:   handlers.NewBasicHandler(ServiceName, version, probes, logger),
		Chat:    handlers.NewChatHandler(conversation, logger),
		Metrics: metrics.Handler(),
	}
	if cfg.Server.PublicURL != "" {
		h.SwaggerURL = strings.TrimRight(cfg.Server.PublicURL, "/") + "/swagger/doc.json"
	}

	auth := handlers.AuthMiddleware(handlers.AuthConfig{
		JWTSecret:       cfg.Auth.JWTSecret,
		AllowUserHeader: cfg.Auth.AllowUserHeader,
	}, logger)

	router := mux.NewRouter()
	routes.RegisterRoutes(router, h, auth)

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handlers.CORSMiddleware(handlers.LoggingMiddleware(logger)(router)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("✅ Chat services initialized successfully")
	return s, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	defer s.close()

	if err := s.pool.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		_ = s.pool.StopAll(context.Background())
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.pool.StopAll(shutdownCtx); err != nil {
		s.logger.Warnf("⚠️  Worker shutdown: %v", err)
	}
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	s.logger.Info("Server stopped")
	return nil
}

// close releases backend connections in reverse order
func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warnf("close: %v", err)
		}
	}
	s.closers = nil
}

// initializeSessionStore connects the configured session backend
func (s *Server) initializeSessionStore(ctx context.Context) (repositories.SessionRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	repo, err := NewSessionStore(ctx, s.cfg, s.logger)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, repo.Close)
	return repo, nil
}
