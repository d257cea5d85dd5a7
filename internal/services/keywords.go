package services

import (
	"sort"
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"
)

// KeywordExtractor pulls the salient terms out of a patient question
type KeywordExtractor struct {
	stopWords map[string]bool
	skipTags  map[string]bool
	minLength int
}

// NewKeywordExtractor creates a new keyword extractor
func NewKeywordExtractor() *KeywordExtractor {
	stopWords := map[string]bool{
		"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
		"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
		"with": true, "by": true, "is": true, "are": true, "was": true, "were": true,
		"be": true, "been": true, "have": true, "has": true, "had": true, "do": true,
		"does": true, "did": true, "will": true, "would": true, "could": true, "should": true,
		"can": true, "this": true, "that": true, "what": true, "how": true, "why": true,
		"when": true, "which": true, "i": true, "you": true, "it": true, "my": true,
		"me": true, "your": true, "about": true, "tell": true, "know": true, "please": true,
	}

	skipTags := map[string]bool{
		"DT":   true, // determiner
		"IN":   true, // preposition
		"TO":   true, // to
		"CC":   true, // coordinating conjunction
		"PRP":  true, // personal pronoun
		"PRP$": true, // possessive pronoun
		"WP":   true, // wh-pronoun
		"WDT":  true, // wh-determiner
		"WRB":  true, // wh-adverb
		"MD":   true, // modal
	}

	return &KeywordExtractor{
		stopWords: stopWords,
		skipTags:  skipTags,
		minLength: 3,
	}
}

// KeywordResult represents a keyword with its frequency and importance
type KeywordResult struct {
	Word      string  `json:"word"`
	Frequency int     `json:"frequency"`
	Score     float64 `json:"score"`
	PosTag    string  `json:"pos_tag"`
}

// ExtractKeywords scores the tokens of text, highest first
func (ke *KeywordExtractor) ExtractKeywords(text string) ([]KeywordResult, error) {
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false), prose.WithExtraction(false))
	if err != nil {
		return nil, err
	}

	wordFreq := make(map[string]*KeywordResult)
	order := make([]string, 0)

	for _, tok := range doc.Tokens() {
		word := strings.ToLower(tok.Text)
		if ke.shouldSkipWord(word, tok.Tag) {
			continue
		}

		score := ke.calculateScore(tok.Tag)
		if existing, exists := wordFreq[word]; exists {
			existing.Frequency++
			existing.Score += score
			continue
		}
		wordFreq[word] = &KeywordResult{Word: word, Frequency: 1, Score: score, PosTag: tok.Tag}
		order = append(order, word)
	}

	keywords := make([]KeywordResult, 0, len(order))
	for _, word := range order {
		keywords = append(keywords, *wordFreq[word])
	}

	// Stable so equal scores keep their position in the question
	sort.SliceStable(keywords, func(i, j int) bool {
		return keywords[i].Score > keywords[j].Score
	})
	return keywords, nil
}

// TopKeywords returns up to limit keyword strings
func (ke *KeywordExtractor) TopKeywords(text string, limit int) ([]string, error) {
	keywords, err := ke.ExtractKeywords(text)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(keywords) > limit {
		keywords = keywords[:limit]
	}

	result := make([]string, len(keywords))
	for i, kw := range keywords {
		result[i] = kw.Word
	}
	return result, nil
}

func (ke *KeywordExtractor) shouldSkipWord(word, posTag string) bool {
	if len([]rune(word)) < ke.minLength {
		return true
	}
	if ke.stopWords[word] {
		return true
	}
	if isPureNumber(word) || isPunctuation(word) {
		return true
	}
	return ke.skipTags[posTag]
}

// calculateScore weights nouns above adjectives above verbs
func (ke *KeywordExtractor) calculateScore(posTag string) float64 {
	switch {
	case strings.HasPrefix(posTag, "NNP"):
		return 2.0
	case strings.HasPrefix(posTag, "NN"):
		return 1.5
	case strings.HasPrefix(posTag, "JJ"):
		return 1.3
	case strings.HasPrefix(posTag, "VB"):
		return 1.2
	case strings.HasPrefix(posTag, "RB"):
		return 0.8
	}
	return 1.0
}

func isPureNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

func isPunctuation(s string) bool {
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return len(s) > 0
}
