package server

import (
	"context"
	"fmt"
	"time"

	"ehr-chatbot/internal/config"
	"ehr-chatbot/internal/db"
	"ehr-chatbot/internal/repositories"
	"ehr-chatbot/internal/services"

	"go.uber.org/zap"
)

// NewSessionStore connects the configured session backend and verifies it answers
func NewSessionStore(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (repositories.SessionRepository, error) {
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		logger.Warn("⚠️  Using in-memory session store, sessions are lost on restart")
		return repositories.NewMemorySessionRepository(), nil

	case config.StoragePostgres:
		logger.Info("Connecting to Postgres session store")
		conn, err := db.OpenPostgres(ctx, cfg.PostgresConfig())
		if err != nil {
			logger.Errorf("❌ Postgres connection failed: %v", err)
			logger.Info("   Hint: Ensure Postgres is running (docker run -d -p 5432:5432 -e POSTGRES_PASSWORD=ehr postgres:16-alpine)")
			return nil, fmt.Errorf("postgres session store: %w", err)
		}
		if cfg.Postgres.Migrate {
			if err := db.MigratePostgres(conn); err != nil {
				_ = conn.Close()
				logger.Errorf("❌ Postgres migration failed: %v", err)
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
			logger.Info("✅ Postgres schema up to date")
		}
		logger.Info("✅ Postgres connected successfully")
		return repositories.NewPostgresSessionRepository(conn), nil

	case config.StorageRedis:
		redisConfig := cfg.RedisConfig()
		logger.Infof("Connecting to Redis: %s (DB: %d)", redisConfig.Addr(), redisConfig.DB)

		redisClient := db.NewRedisClient(redisConfig)
		if err := redisClient.Ping(ctx); err != nil {
			_ = redisClient.Close()
			logger.Errorf("❌ Redis connection failed: %v", err)
			logger.Info("   Hint: Ensure Redis is running (docker run -d -p 6379:6379 redis:7-alpine)")
			return nil, fmt.Errorf("redis session store: %w", err)
		}
		logger.Info("✅ Redis connected successfully")
		return repositories.NewRedisSessionRepository(redisClient.GetClient(), cfg.Storage.SessionTTL), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// NewKnowledgeBase creates the Chroma backed knowledge base. An unreachable Chroma is
// logged but not fatal: turns fall back to the generative backend until it returns.
func NewKnowledgeBase(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) *repositories.ChromaKnowledgeBase {
	chromaConfig := cfg.ChromaConfig()
	client := db.NewChromaDBClient(chromaConfig)
	kb := repositories.NewChromaKnowledgeBase(client, cfg.Chroma.Collection, logger)

	logger.Infof("Connecting to ChromaDB: %s (collection: %s)", describeChroma(chromaConfig), cfg.Chroma.Collection)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := kb.Ping(pingCtx); err != nil {
		logger.Errorf("❌ ChromaDB connection failed: %v", err)
		logger.Info("   Retrieval is degraded, every turn uses the fallback path")
		logger.Info("   Hint: Ensure ChromaDB is running (docker run -d -p 8000:8000 chromadb/chroma)")
		return kb
	}
	logger.Info("✅ ChromaDB connected successfully")
	return kb
}

// NewEmbedder creates the configured query embedding backend
func NewEmbedder(cfg *config.Config, logger *zap.SugaredLogger) (services.Embedder, error) {
	switch cfg.Embedding.Backend {
	case config.EmbeddingOpenAI:
		embedder, err := services.NewOpenAIEmbedder(cfg.EmbeddingAPIKey(), cfg.LLM.BaseURL, cfg.Embedding.Model)
		if err != nil {
			return nil, err
		}
		logger.Info("Using OpenAI-compatible embeddings")
		return embedder, nil

	case config.EmbeddingPython, "":
		logger.Infof("Initializing Python embedding client: %s (timeout: %v, retries: %d)",
			cfg.Embedding.URL, cfg.Embedding.Timeout, cfg.Embedding.Retries)
		return services.NewPythonClient(services.PythonClientOptions{
			BaseURL:   cfg.Embedding.URL,
			Model:     cfg.Embedding.Model,
			Timeout:   cfg.Embedding.Timeout,
			Retries:   cfg.Embedding.Retries,
			BatchSize: cfg.Embedding.BatchSize,
		}), nil

	default:
		return nil, fmt.Errorf("unknown embedding backend %q", cfg.Embedding.Backend)
	}
}

func describeChroma(c db.ChromaDBConfig) string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
