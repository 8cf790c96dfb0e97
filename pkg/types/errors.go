package types

import "errors"

var (
	// ErrEmptyResponse is returned when a provider returns an empty response
	ErrEmptyResponse = errors.New("empty response from provider")

	// ErrNoJSONFound is returned when no parseable JSON could be extracted
	// from an LLM response
	ErrNoJSONFound = errors.New("no parseable JSON in response")

	// ErrEmbeddingTypeMismatch is returned when a cache or query embedding
	// does not match the configured embedding type
	ErrEmbeddingTypeMismatch = errors.New("embedding type mismatch")
)
