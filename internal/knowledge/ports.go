package knowledge

import "context"

// Confidence thresholds for retrieved candidates.
//
// FAQDirectThreshold: above this, the FAQ answer anchors the reply directly.
// ContextInclusionThreshold: an FAQ scoring below this is dropped entirely,
// not even surfaced as generic context.
const (
	FAQDirectThreshold        = 0.92
	ContextInclusionThreshold = 0.68
)

type Kind string

const (
	KindFAQ     Kind = "faq"
	KindContext Kind = "context"
)

// Candidate is one retrieved snippet. It lives only within a single
// routing decision and is never persisted.
type Candidate struct {
	ID       string
	Text     string
	Question string // set for FAQ candidates
	Score    float64
	Kind     Kind
}

// VectorIndex — nearest-neighbor search scoped to one tenant.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, tenantID string, topK int) ([]Candidate, error)
}

// Embedder turns query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Match is the matcher's output: the single best FAQ candidate (nil when
// none retrieved) and up to MaxContextSnippets context snippets.
type Match struct {
	BestFAQ         *Candidate
	ContextSnippets []string
}
