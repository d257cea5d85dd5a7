package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"ehr-chatbot/internal/models"

	"github.com/google/uuid"
)

// knowledgeNamespace seeds the deterministic ids of entries that do not carry one.
// Re-ingesting the same file then upserts instead of duplicating.
var knowledgeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("ehr-chatbot/knowledge-base"))

// LoadFromFile reads a JSON array of knowledge base entries
func LoadFromFile(path string) ([]models.KnowledgeEntry, error) {
	//open the file
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	//decode the json data
	var entries []models.KnowledgeEntry
	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	seen := make(map[string]int, len(entries))
	for i := range entries {
		e := &entries[i]
		e.ID = strings.TrimSpace(e.ID)
		e.ConditionID = strings.TrimSpace(e.ConditionID)
		if e.ID == "" {
			e.ID = EntryID(e.ConditionID, e.Question)
		}
		if prev, ok := seen[e.ID]; ok {
			return nil, fmt.Errorf("%w: entries %d and %d share id %q", models.ErrInvalidInput, prev, i, e.ID)
		}
		seen[e.ID] = i
	}

	return entries, nil
}

// EntryID derives a stable id from the condition and question
func EntryID(conditionID, question string) string {
	return uuid.NewSHA1(knowledgeNamespace, []byte(conditionID+"\x00"+strings.TrimSpace(question))).String()
}
