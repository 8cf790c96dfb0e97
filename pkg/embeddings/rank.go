package embeddings

import (
	"math"
	"sort"

	"github.com/flowbaker/toolgroups/pkg/types"
)

type scored struct {
	name  string
	score float64
}

// rankBySimilarity orders candidates by cosine similarity to the query,
// descending. The sort is stable so equal scores keep input order. Vectors
// whose type does not match the query are unusable and excluded.
func rankBySimilarity(query types.Embedding, names []string, vectors map[string]types.Embedding, count int) []string {
	ranked := make([]scored, 0, len(names))
	for _, name := range names {
		embedding, ok := vectors[name]
		if !ok || embedding.Type != query.Type {
			continue
		}
		ranked = append(ranked, scored{name: name, score: cosineSimilarity(query.Value, embedding.Value)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if count < len(ranked) {
		ranked = ranked[:count]
	}

	result := make([]string, len(ranked))
	for i, s := range ranked {
		result[i] = s.name
	}
	return result
}

// cosineSimilarity is the similarity metric for embedding vectors. Stored
// vectors are normalized by the providers, but the full quotient is computed
// so unnormalized inputs still rank correctly.
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
