package knowledge

import (
	"context"
	"sort"
)

const (
	TopK               = 8
	MaxContextSnippets = 5
)

// Matcher retrieves ranked knowledge for a visitor query.
type Matcher struct {
	embedder Embedder
	index    VectorIndex
}

func NewMatcher(embedder Embedder, index VectorIndex) *Matcher {
	return &Matcher{embedder: embedder, index: index}
}

// Match embeds the query, pulls the topK nearest candidates for the tenant,
// and classifies them. Zero matches is not an error: both outputs are empty
// and downstream treats it as "no retrieved knowledge".
func (m *Matcher) Match(ctx context.Context, tenantID, query string) (Match, error) {
	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return Match{}, err
	}

	candidates, err := m.index.Search(ctx, vec, tenantID, TopK)
	if err != nil {
		return Match{}, err
	}

	// Best FAQ: strictly greater score wins, exact ties keep the first seen.
	var best *Candidate
	for i := range candidates {
		c := candidates[i]
		if c.Kind != KindFAQ || c.Text == "" {
			continue
		}
		if best == nil || c.Score > best.Score {
			cp := c
			best = &cp
		}
	}

	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	var snippets []string
	for _, c := range ranked {
		if len(snippets) == MaxContextSnippets {
			break
		}
		if c.Text == "" {
			continue
		}
		// A low-confidence FAQ is not worth surfacing as context either.
		if c.Kind == KindFAQ && c.Score < ContextInclusionThreshold {
			continue
		}
		snippets = append(snippets, c.Text)
	}

	return Match{BestFAQ: best, ContextSnippets: snippets}, nil
}
