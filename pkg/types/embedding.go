package types

// EmbeddingType names the model family a vector was produced by. Vectors of
// different types are not comparable; caches store the type alongside the
// data and discard entries whose type no longer matches.
type EmbeddingType string

// Embedding is a single embedding vector.
type Embedding struct {
	Type  EmbeddingType
	Value []float32
}
