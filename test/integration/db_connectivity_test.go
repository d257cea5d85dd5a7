package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"ehr-chatbot/internal/db"
	"ehr-chatbot/internal/models"
	"ehr-chatbot/internal/repositories"

	chroma "github.com/amikos-tech/chroma-go"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func chromaURL() string {
	if url := os.Getenv("EHR_CHROMA_URL"); url != "" {
		return url
	}
	return "http://localhost:8000"
}

func redisAddr() string {
	if addr := os.Getenv("EHR_REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// TestChromaDBConnectivity checks the server answers the official client.
// NOTE: chroma-go v0.3.0-alpha.1 speaks the v1 API; the service itself uses the v2 HTTP wrapper in internal/db
func TestChromaDBConnectivity(t *testing.T) {
	// Skip if running in CI without ChromaDB
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := chroma.NewClient(chroma.WithBasePath(chromaURL()))
	if err != nil {
		t.Fatalf("Failed to create ChromaDB client: %v", err)
	}

	collections, err := client.ListCollections(ctx)
	if err != nil {
		t.Logf("⚠️  ChromaDB client has API version issues (expected): %v", err)
		t.Skip("Skipping due to known client API compatibility issues - the service uses the HTTP wrapper")
		return
	}

	t.Logf("✅ ChromaDB connected successfully. Found %d collections", len(collections))
}

// TestKnowledgeBaseRoundTrip stores entries in a scratch collection and searches them back
func TestKnowledgeBaseRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	client := db.NewChromaDBClient(db.ChromaDBConfig{URL: chromaURL()})
	if err := client.Heartbeat(ctx); err != nil {
		t.Skipf("ChromaDB not reachable at %s: %v", chromaURL(), err)
	}

	collection := fmt.Sprintf("it_kb_%d", time.Now().UnixNano())
	kb := repositories.NewChromaKnowledgeBase(client, collection, nil)
	if err := kb.EnsureCollection(ctx); err != nil {
		t.Fatalf("EnsureCollection failed: %v", err)
	}

	entries := []models.KnowledgeEntry{
		{ID: "a1", ConditionID: "cond_asthma", ConditionName: "Asthma", Question: "What triggers asthma?", Answer: "Allergens and cold air."},
		{ID: "h1", ConditionID: "cond_hypertension", ConditionName: "Hypertension", Question: "Is salt bad?", Answer: "Too much raises blood pressure."},
	}
	embeddings := [][]float32{{1, 0, 0}, {0, 1, 0}}
	if err := kb.StoreEntries(ctx, entries, embeddings); err != nil {
		t.Fatalf("StoreEntries failed: %v", err)
	}

	results, err := kb.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) == 0 || results[0].MetadataString(models.MetaConditionID) != "cond_asthma" {
		t.Fatalf("expected the asthma entry first, got %+v", results)
	}
	t.Logf("✅ Best match score %.3f", results[0].Score)

	conditions, err := kb.ListConditions(ctx)
	if err != nil {
		t.Fatalf("ListConditions failed: %v", err)
	}
	if conditions["cond_hypertension"] != "Hypertension" {
		t.Fatalf("unexpected conditions %v", conditions)
	}
}

// TestRedisConnectivity tests basic connection to Redis
func TestRedisConnectivity(t *testing.T) {
	// Skip if running in CI without Redis
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: redisAddr()})
	defer client.Close()

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		t.Fatalf("Redis ping failed: %v", err)
	}
	if pong != "PONG" {
		t.Fatalf("Expected PONG, got %s", pong)
	}

	t.Logf("✅ Redis connected successfully")
}

// TestRedisSessionStore runs a session through the Redis repository
func TestRedisSessionStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: redisAddr()})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not reachable at %s: %v", redisAddr(), err)
	}
	repo := repositories.NewRedisSessionRepository(client, time.Minute)
	defer repo.Close()

	const owner int64 = 900001
	session := &models.Session{
		ID:            uuid.New(),
		OwnerUserID:   owner,
		ConditionID:   "cond_asthma",
		ConditionName: "Asthma",
		ClinicalData:  models.ClinicalData{"Age": "41"},
	}
	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer repo.Delete(ctx, session.ID, owner)

	now := time.Now().UTC()
	if err := repo.AppendMessage(ctx, session.ID, owner, models.NewUserMessage("What triggers asthma?", now)); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if err := repo.AppendMessage(ctx, session.ID, owner, models.NewBotMessage("Allergens.", models.ConfidenceHigh, now)); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if err := repo.UpdateStats(ctx, session.ID, owner, models.SessionStats{TotalQueries: 1, HighConfidence: 1}); err != nil {
		t.Fatalf("UpdateStats failed: %v", err)
	}

	messages, err := repo.Messages(ctx, session.ID, owner)
	if err != nil || len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d (%v)", len(messages), err)
	}

	summaries, err := repo.ListByOwner(ctx, owner)
	if err != nil || len(summaries) == 0 {
		t.Fatalf("expected the session in the owner's list, got %v (%v)", summaries, err)
	}
	if summaries[0].Preview != "What triggers asthma?" {
		t.Fatalf("unexpected preview %q", summaries[0].Preview)
	}

	if _, err := repo.Get(ctx, session.ID, owner+1); err == nil {
		t.Fatal("another owner must not see the session")
	}

	t.Logf("✅ Redis session store round trip completed")
}
