package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ehr-chatbot/internal/metrics"
	"ehr-chatbot/internal/models"
	"ehr-chatbot/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxQueryRunes caps the length of one user message
const DefaultMaxQueryRunes = 2000

const clarifyKeywordsMax = 5

// Retriever finds the best knowledge base answer for a query
type Retriever interface {
	Retrieve(ctx context.Context, query, expectedConditionID string) (*models.RetrievalMatch, error)
}

// Synthesizer generates an answer when retrieval is not enough
type Synthesizer interface {
	Synthesize(ctx context.Context, req FallbackRequest) (string, bool)
}

// NoteGenerator writes educational notes
type NoteGenerator interface {
	GenerateNote(ctx context.Context, conditionName string, data models.ClinicalData) (string, bool)
}

// ConditionLookup resolves condition ids
type ConditionLookup interface {
	Resolve(ctx context.Context, id string) (models.Condition, bool)
	List(ctx context.Context) map[string]string
}

// MessageTemplates are the fixed user-facing strings
type MessageTemplates struct {
	Apology          string `mapstructure:"apology"`
	DetectedLabel    string `mapstructure:"detected_label"`
	FollowUpPrefix   string `mapstructure:"follow_up_prefix"` // empty by default
	MismatchPrefix   string `mapstructure:"mismatch_prefix"`
	KeywordHintLabel string `mapstructure:"keyword_hint_label"`
}

// DefaultMessageTemplates returns the English templates
func DefaultMessageTemplates() MessageTemplates {
	return MessageTemplates{
		Apology: "❌ Sorry, I couldn't find an accurate answer in the available information.\n\n" +
			"💡 You can ask your question more clearly or use different words.",
		DetectedLabel:    "Detected condition",
		MismatchPrefix:   "⚠️ ",
		KeywordHintLabel: "The question appears to be about",
	}
}

func (m MessageTemplates) withDefaults() MessageTemplates {
	d := DefaultMessageTemplates()
	if m.Apology == "" {
		m.Apology = d.Apology
	}
	if m.DetectedLabel == "" {
		m.DetectedLabel = d.DetectedLabel
	}
	if m.MismatchPrefix == "" {
		m.MismatchPrefix = d.MismatchPrefix
	}
	if m.KeywordHintLabel == "" {
		m.KeywordHintLabel = d.KeywordHintLabel
	}
	return m
}

// ConversationDeps wires the orchestrator
type ConversationDeps struct {
	Sessions    repositories.SessionRepository
	Registry    ConditionLookup
	Retriever   Retriever
	Synthesizer Synthesizer
	Educator    NoteGenerator
	Keywords    *KeywordExtractor // optional, enriches clarification hints
	Thresholds  Thresholds
	Messages    MessageTemplates
	MaxQuery    int // rune limit for one query, zero uses DefaultMaxQueryRunes
	Logger      *zap.SugaredLogger
}

// ConversationService runs the retrieve, classify, fallback pipeline for each turn
type ConversationService struct {
	sessions    repositories.SessionRepository
	registry    ConditionLookup
	retriever   Retriever
	synthesizer Synthesizer
	educator    NoteGenerator
	keywords    *KeywordExtractor
	thresholds  Thresholds
	messages    MessageTemplates
	maxQuery    int
	logger      *zap.SugaredLogger
	locks       *sessionLocks
	now         func() time.Time
	newID       func() uuid.UUID
}

// NewConversationService creates the orchestrator
func NewConversationService(deps ConversationDeps) *ConversationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	thresholds := deps.Thresholds
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}

	maxQuery := deps.MaxQuery
	if maxQuery <= 0 {
		maxQuery = DefaultMaxQueryRunes
	}

	return &ConversationService{
		sessions:    deps.Sessions,
		registry:    deps.Registry,
		retriever:   deps.Retriever,
		synthesizer: deps.Synthesizer,
		educator:    deps.Educator,
		keywords:    deps.Keywords,
		thresholds:  thresholds,
		messages:    deps.Messages.withDefaults(),
		maxQuery:    maxQuery,
		logger:      logger,
		locks:       newSessionLocks(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.New,
	}
}

// Conditions returns the registry map
func (s *ConversationService) Conditions(ctx context.Context) map[string]string {
	return s.registry.List(ctx)
}

// ============================================================================
// Session lifecycle
// ============================================================================

// StartSession creates a session. Unregistered conditions are allowed and always
// get an educational note; registered ones get one unless the caller opts out.
func (s *ConversationService) StartSession(ctx context.Context, ownerID int64, req models.StartSessionRequest) (*models.StartSessionResponse, error) {
	conditionID := strings.TrimSpace(req.ConditionID)
	if conditionID == "" {
		return nil, fmt.Errorf("%w: condition_id is required", models.ErrInvalidInput)
	}

	clinical, err := models.NormalizeClinicalData(req.ClinicalData)
	if err != nil {
		return nil, err
	}

	condition, registered := s.registry.Resolve(ctx, conditionID)
	name := condition.DisplayName
	if !registered {
		name = strings.TrimSpace(req.ConditionName)
		if name == "" {
			name = conditionID
		}
	}

	now := s.now()
	session := &models.Session{
		ID:            s.newID(),
		OwnerUserID:   ownerID,
		ConditionID:   conditionID,
		ConditionName: name,
		ClinicalData:  clinical,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Infof("session %s started for condition %s (registered=%t)", session.ID, conditionID, registered)

	resp := &models.StartSessionResponse{
		Success:       true,
		SessionID:     session.ID,
		ConditionID:   conditionID,
		ConditionName: name,
		Registered:    registered,
	}

	// The session already exists, so a note failure never fails the request
	if !registered || req.WantsEducationalNote() {
		note, err := s.attachEducationalNote(ctx, session)
		if err != nil {
			s.logger.Errorf("session %s: educational note not fully stored: %v", session.ID, err)
		}
		resp.EducationalNote = note
	}
	return resp, nil
}

// attachEducationalNote stores the note on the session and in its message log.
// The returned note is non-nil once it is stored on the session, even if the
// log append then fails.
func (s *ConversationService) attachEducationalNote(ctx context.Context, session *models.Session) (*models.EducationalNote, error) {
	text, ok := s.educator.GenerateNote(ctx, session.ConditionName, session.ClinicalData)
	if !ok {
		s.logger.Warnf("session %s started without educational note", session.ID)
		return nil, nil
	}

	note := models.EducationalNote{
		Condition:     session.ConditionID,
		ConditionName: session.ConditionName,
		Note:          text,
	}
	if err := s.sessions.SetEducationalNote(ctx, session.ID, session.OwnerUserID, note); err != nil {
		return nil, err
	}
	msg := models.NewBotMessage(text, models.ConfidenceEducationalNote, s.now())
	if err := s.sessions.AppendMessage(ctx, session.ID, session.OwnerUserID, msg); err != nil {
		return &note, err
	}
	return &note, nil
}

// History returns the session with its full message log
func (s *ConversationService) History(ctx context.Context, ownerID int64, sessionID uuid.UUID) (*models.HistoryResponse, error) {
	session, err := s.sessions.Get(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	messages, err := s.sessions.Messages(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}

	return &models.HistoryResponse{
		Success:         true,
		SessionID:       session.ID,
		ConditionID:     session.ConditionID,
		ConditionName:   session.ConditionName,
		ClinicalData:    session.ClinicalData,
		EducationalNote: session.EducationalNote,
		Messages:        messages,
		Stats:           session.Stats,
	}, nil
}

// ListSessions returns the owner's sessions, most recently updated first
func (s *ConversationService) ListSessions(ctx context.Context, ownerID int64) ([]models.SessionSummary, error) {
	return s.sessions.ListByOwner(ctx, ownerID)
}

// UpdateClinicalData replaces the session's clinical data wholesale
func (s *ConversationService) UpdateClinicalData(ctx context.Context, ownerID int64, sessionID uuid.UUID, data map[string]string) (models.ClinicalData, error) {
	clinical, err := models.NormalizeClinicalData(data)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(sessionID.String())
	defer unlock()

	if err := s.sessions.UpdateClinicalData(ctx, sessionID, ownerID, clinical); err != nil {
		return nil, err
	}
	return clinical, nil
}

// Stats returns the session counters
func (s *ConversationService) Stats(ctx context.Context, ownerID int64, sessionID uuid.UUID) (models.SessionStats, error) {
	session, err := s.sessions.Get(ctx, sessionID, ownerID)
	if err != nil {
		return models.SessionStats{}, err
	}
	return session.Stats, nil
}

// DeleteSession removes the session and its messages
func (s *ConversationService) DeleteSession(ctx context.Context, ownerID int64, sessionID uuid.UUID) error {
	unlock := s.locks.Lock(sessionID.String())
	defer unlock()

	if err := s.sessions.Delete(ctx, sessionID, ownerID); err != nil {
		return err
	}
	s.logger.Infof("session %s deleted", sessionID)
	return nil
}

// GenerateEducationalNote writes a note for a registered condition outside of a session
func (s *ConversationService) GenerateEducationalNote(ctx context.Context, conditionID string, data map[string]string) (*models.EducationalNote, error) {
	conditionID = strings.TrimSpace(conditionID)
	condition, ok := s.registry.Resolve(ctx, conditionID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidCondition, conditionID)
	}

	clinical, err := models.NormalizeClinicalData(data)
	if err != nil {
		return nil, err
	}

	text, ok := s.educator.GenerateNote(ctx, condition.DisplayName, clinical)
	if !ok {
		return nil, fmt.Errorf("%w: educational note could not be generated", models.ErrSynthesisUnavailable)
	}
	return &models.EducationalNote{
		Condition:     condition.ID,
		ConditionName: condition.DisplayName,
		Note:          text,
	}, nil
}

// ============================================================================
// Turn handling
// ============================================================================

// HandleQuery answers one user message. Turns on the same session run one at a time.
// Only session identity, input and persistence errors are returned; backend
// failures degrade to a lower confidence answer.
func (s *ConversationService) HandleQuery(ctx context.Context, ownerID int64, sessionID uuid.UUID, query string) (*models.TurnResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", models.ErrInvalidInput)
	}
	if len([]rune(query)) > s.maxQuery {
		return nil, fmt.Errorf("%w: query exceeds %d characters", models.ErrInvalidInput, s.maxQuery)
	}

	unlock := s.locks.Lock(sessionID.String())
	defer unlock()

	// 1. Load the session and its prior messages
	session, err := s.sessions.Get(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	history, err := s.sessions.Messages(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}

	// 2. Persist the user message before doing any work
	if err := s.sessions.AppendMessage(ctx, sessionID, ownerID, models.NewUserMessage(query, s.now())); err != nil {
		return nil, err
	}

	// 3. Decide on an answer
	text, level, responseType := s.answer(ctx, session, history, query)

	// 4. Record the bot message and counters
	stats := session.Stats
	stats.Record(level)
	if err := s.sessions.AppendMessage(ctx, sessionID, ownerID, models.NewBotMessage(text, level, s.now())); err != nil {
		return nil, err
	}
	if err := s.sessions.UpdateStats(ctx, sessionID, ownerID, stats); err != nil {
		return nil, err
	}

	metrics.RecordTurn(string(responseType), string(level))
	s.logger.Infof("session %s turn answered: type=%s confidence=%s", sessionID, responseType, level)

	return &models.TurnResult{
		Success:         true,
		Message:         text,
		ConfidenceLevel: level,
		ResponseType:    responseType,
		Stats:           stats,
	}, nil
}

func (s *ConversationService) answer(ctx context.Context, session *models.Session, history []models.Message, query string) (string, models.ConfidenceLevel, models.ResponseType) {
	classified := s.classify(ctx, session, query)

	req := FallbackRequest{
		Query:         query,
		ConditionName: session.ConditionName,
		ClinicalData:  session.ClinicalData,
		History:       history,
	}

	switch c := classified.(type) {
	case models.DirectAnswer:
		text := c.AnswerText
		if c.FollowUp != "" {
			text += "\n\n" + s.messages.FollowUpPrefix + c.FollowUp
		}
		return text, models.ConfidenceHigh, c.ResponseType()

	case models.Clarification:
		req.ContextHint = s.clarificationHint(c.Message, query)
		generated, ok := s.synthesizer.Synthesize(ctx, req)
		if !ok {
			return s.messages.Apology, models.ConfidenceLow, c.ResponseType()
		}
		return c.Message + "\n\n" + generated, models.ConfidenceMedium, c.ResponseType()

	case models.ConditionMismatch:
		req.ContextHint = fmt.Sprintf("%s %s: %s.", c.Message, s.messages.DetectedLabel, c.DetectedConditionName)
		generated, ok := s.synthesizer.Synthesize(ctx, req)
		if !ok {
			return s.messages.Apology, models.ConfidenceLow, c.ResponseType()
		}
		text := fmt.Sprintf("%s%s\n\n%s: **%s**\n\n%s",
			s.messages.MismatchPrefix, c.Message, s.messages.DetectedLabel, c.DetectedConditionName, generated)
		return text, models.ConfidenceMedium, c.ResponseType()

	default:
		// FallbackRequired carries no hint from retrieval
		generated, ok := s.synthesizer.Synthesize(ctx, req)
		if !ok {
			return s.messages.Apology, models.ConfidenceLow, models.ResponseLLMFallback
		}
		return generated, models.ConfidenceMedium, models.ResponseLLMFallback
	}
}

// classify runs retrieval for registered conditions; anything else goes to the synthesizer
func (s *ConversationService) classify(ctx context.Context, session *models.Session, query string) models.ClassifiedResponse {
	if _, registered := s.registry.Resolve(ctx, session.ConditionID); !registered {
		return models.FallbackRequired{}
	}

	match, err := s.retriever.Retrieve(ctx, query, session.ConditionID)
	switch {
	case errors.Is(err, models.ErrNoMatch):
		return models.FallbackRequired{}
	case err != nil:
		s.logger.Warnf("session %s retrieval degraded: %v", session.ID, err)
		metrics.RecordDegraded(degradedRetrieval)
		return models.FallbackRequired{}
	}

	return Classify(match, session.ConditionID, s.thresholds)
}

func (s *ConversationService) clarificationHint(message, query string) string {
	if s.keywords == nil {
		return message
	}
	terms, err := s.keywords.TopKeywords(query, clarifyKeywordsMax)
	if err != nil || len(terms) == 0 {
		return message
	}
	return fmt.Sprintf("%s %s: %s.", message, s.messages.KeywordHintLabel, strings.Join(terms, ", "))
}
