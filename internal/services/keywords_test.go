package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordExtractor_TopKeywords(t *testing.T) {
	ke := NewKeywordExtractor()

	terms, err := ke.TopKeywords("What is the best diet for diabetes and what about diabetes medication?", 3)
	require.NoError(t, err)
	require.NotEmpty(t, terms)
	assert.LessOrEqual(t, len(terms), 3)
	assert.Equal(t, "diabetes", terms[0], "repeated noun should rank first")
	assert.NotContains(t, terms, "what")
	assert.NotContains(t, terms, "the")
}

func TestKeywordExtractor_SkipsNoise(t *testing.T) {
	ke := NewKeywordExtractor()

	keywords, err := ke.ExtractKeywords("is it ok ?? 120 / 80")
	require.NoError(t, err)
	for _, kw := range keywords {
		assert.False(t, isPureNumber(kw.Word), kw.Word)
		assert.False(t, isPunctuation(kw.Word), kw.Word)
	}
}
