package services

import (
	"context"

	"ehr-chatbot/internal/models"
	"ehr-chatbot/internal/repositories"

	"github.com/stretchr/testify/mock"
)

// ============================================================================
// Mock Implementations
// ============================================================================

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockEmbedder) HealthCheck(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, embedding []float32, limit int) ([]repositories.SearchResult, error) {
	args := m.Called(ctx, embedding, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repositories.SearchResult), args.Error(1)
}

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, messages []CompletionMessage, params CompletionParams) (string, error) {
	args := m.Called(ctx, messages, params)
	return args.String(0), args.Error(1)
}

type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Retrieve(ctx context.Context, query, expectedConditionID string) (*models.RetrievalMatch, error) {
	args := m.Called(ctx, query, expectedConditionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RetrievalMatch), args.Error(1)
}

type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, req FallbackRequest) (string, bool) {
	args := m.Called(ctx, req)
	return args.String(0), args.Bool(1)
}

type MockNoteGenerator struct {
	mock.Mock
}

func (m *MockNoteGenerator) GenerateNote(ctx context.Context, conditionName string, data models.ClinicalData) (string, bool) {
	args := m.Called(ctx, conditionName, data)
	return args.String(0), args.Bool(1)
}

type staticConditions map[string]string

func (s staticConditions) Resolve(_ context.Context, id string) (models.Condition, bool) {
	name, ok := s[id]
	return models.Condition{ID: id, DisplayName: name}, ok
}

func (s staticConditions) List(context.Context) map[string]string {
	return copyConditions(s)
}

func (s staticConditions) ListConditions(context.Context) (map[string]string, error) {
	return copyConditions(s), nil
}
