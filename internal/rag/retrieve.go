package rag

import (
	"context"
	"fmt"
	"strings"
)

// Result is a rendered context block plus the provenance of what went
// into it. Empty context with zero sources is a valid outcome, not an
// error.
type Result struct {
	Context  string
	Sources  []Match
	Fallback bool
}

// Retriever composes embedding and vector search into the single
// retrieval step the orchestrator calls.
type Retriever struct {
	embedder *Embedder
	store    *Store
	topK     func() int
}

func NewRetriever(embedder *Embedder, store *Store, topK func() int) *Retriever {
	return &Retriever{embedder: embedder, store: store, topK: topK}
}

// RetrieveContext embeds the query, searches the configured namespace
// and renders surviving matches into one numbered context block for
// the generation prompt.
func (r *Retriever) RetrieveContext(ctx context.Context, query, language string) (Result, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return Result{}, err
	}
	matches, fallback, err := r.store.QueryVectors(ctx, vector, r.topK())
	if err != nil {
		return Result{}, err
	}
	if len(matches) == 0 {
		return Result{Sources: []Match{}}, nil
	}

	parts := make([]string, 0, len(matches))
	for i, m := range matches {
		var b strings.Builder
		fmt.Fprintf(&b, "[%d] ", i+1)
		if m.Title != "" {
			b.WriteString(m.Title)
			b.WriteString("\n")
		}
		b.WriteString(m.Text)
		if m.Language != "en" {
			fmt.Fprintf(&b, " [%s]", strings.ToUpper(m.Language))
		}
		if m.Source != "" {
			fmt.Fprintf(&b, " (%s)", m.Source)
		}
		parts = append(parts, b.String())
	}
	return Result{
		Context:  strings.Join(parts, "\n\n---\n\n"),
		Sources:  matches,
		Fallback: fallback,
	}, nil
}
