package models

import "errors"

var (
	// ErrRetrievalUnavailable means the knowledge base could not be queried
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrNoMatch means the knowledge base answered but returned nothing usable
	ErrNoMatch = errors.New("no knowledge base match")

	// ErrSynthesisUnavailable means the generative backend could not produce text
	ErrSynthesisUnavailable = errors.New("synthesis unavailable")

	// ErrSessionNotFound covers both unknown sessions and sessions owned by someone else
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidCondition means a condition id is not in the registry
	ErrInvalidCondition = errors.New("invalid condition")

	// ErrInvalidInput marks request validation failures
	ErrInvalidInput = errors.New("invalid input")
)
