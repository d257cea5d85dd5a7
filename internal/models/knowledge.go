package models

import (
	"fmt"
	"strings"
)

// Metadata keys stored alongside each knowledge base document
const (
	MetaConditionID   = "condition_id"
	MetaConditionName = "condition_name"
	MetaQuestion      = "question"
	MetaAnswer        = "answer"
	MetaFollowUp      = "follow_up"
)

// KnowledgeEntry is one question/answer pair loaded into the knowledge base
type KnowledgeEntry struct {
	ID            string `json:"id"`
	ConditionID   string `json:"condition_id"`
	ConditionName string `json:"condition_name"`
	Question      string `json:"question"`
	Answer        string `json:"answer"`
	FollowUp      string `json:"follow_up,omitempty"`
}

// Validate checks the fields ingestion depends on
func (e KnowledgeEntry) Validate() error {
	if strings.TrimSpace(e.ConditionID) == "" {
		return fmt.Errorf("%w: entry %q has no condition_id", ErrInvalidInput, e.ID)
	}
	if strings.TrimSpace(e.Question) == "" || strings.TrimSpace(e.Answer) == "" {
		return fmt.Errorf("%w: entry %q needs both question and answer", ErrInvalidInput, e.ID)
	}
	return nil
}

// Document is the text that gets embedded for the entry
func (e KnowledgeEntry) Document() string {
	return e.Question
}

// Metadata is stored next to the embedding and read back on retrieval
func (e KnowledgeEntry) Metadata() map[string]interface{} {
	name := e.ConditionName
	if name == "" {
		name = e.ConditionID
	}
	meta := map[string]interface{}{
		MetaConditionID:   e.ConditionID,
		MetaConditionName: name,
		MetaQuestion:      e.Question,
		MetaAnswer:        e.Answer,
	}
	if e.FollowUp != "" {
		meta[MetaFollowUp] = e.FollowUp
	}
	return meta
}
