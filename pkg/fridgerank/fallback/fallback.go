// Package fallback defines the similarity search used for the global
// search tier, plus wrappers around it.
//
// The engine only depends on Searcher. Any nearest-neighbour index over
// recipe flavor vectors satisfies it as long as results are ordered by
// similarity, highest first, and never exceed the requested limit.
package fallback

import (
	"context"
	"errors"
	"sort"
)

// ErrUnavailable is returned when the searcher cannot serve requests,
// e.g. because its circuit is open.
var ErrUnavailable = errors.New("fallback search unavailable")

// Query is a flavor-space nearest-neighbour request
type Query struct {
	Vector        [6]float64 // sweet, salty, sour, bitter, umami, spicy
	Limit         int
	DietaryFilter []string // empty means no filter
}

// Hit is one search result. Similarity is in [0,1].
type Hit struct {
	RecipeID   string
	Title      string
	Similarity float64
}

// Searcher finds recipes close to a flavor vector.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Hit, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, q Query) ([]Hit, error)

// Search calls f.
func (f SearcherFunc) Search(ctx context.Context, q Query) ([]Hit, error) {
	return f(ctx, q)
}

// Static serves a fixed hit list. It does not compute similarity; hits are
// re-sorted by their stated similarity and truncated to the limit.
type Static struct {
	Hits []Hit
}

// NewStatic creates a searcher over hits.
func NewStatic(hits ...Hit) *Static {
	return &Static{Hits: hits}
}

// Search implements Searcher.
func (s *Static) Search(ctx context.Context, q Query) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := Normalize(s.Hits, q.Limit)
	return out, nil
}

// Normalize copies hits, orders them by similarity descending (recipe id
// breaks ties) and truncates to limit. A non-positive limit yields nil.
func Normalize(hits []Hit, limit int) []Hit {
	if limit <= 0 || len(hits) == 0 {
		return nil
	}
	out := make([]Hit, len(hits))
	copy(out, hits)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].RecipeID < out[j].RecipeID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
