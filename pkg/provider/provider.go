// Package provider defines the remote collaborators the grouping engine
// depends on. Implementations live in subpackages; everything in this module
// treats their failures as degradation, never as fatal errors.
package provider

import (
	"context"

	"github.com/flowbaker/toolgroups/pkg/types"
)

// EmbeddingsClient computes embedding vectors for a batch of texts. The
// returned slice is parallel to texts.
type EmbeddingsClient interface {
	ComputeEmbeddings(ctx context.Context, embeddingType types.EmbeddingType, texts []string) ([]types.Embedding, error)
}

// ChatClient produces a single completion for a system/user prompt pair.
// The categorization adapter does its own lenient JSON extraction on the
// returned text.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
