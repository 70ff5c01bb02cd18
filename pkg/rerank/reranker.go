package rerank

import (
	"context"
	"sort"
)

// NeutralScore is assigned to every candidate when no cross-encoder is loaded.
const NeutralScore = 0.5

// Scored points back into the documents slice passed to Rerank.
type Scored struct {
	Index int
	Score float64
}

type Reranker interface {
	Name() string
	// Available reports whether a real relevance model backs this reranker.
	Available() bool
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]Scored, error)
}

// identity returns documents in input order with the neutral score.
func identity(n, topK int) []Scored {
	out := make([]Scored, n)
	for i := range out {
		out[i] = Scored{Index: i, Score: NeutralScore}
	}
	return truncate(out, topK)
}

// order sorts by score descending; equal scores keep ascending input index.
func order(scored []Scored) []Scored {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Index < scored[j].Index
	})
	return scored
}

func truncate(scored []Scored, topK int) []Scored {
	if topK > 0 && len(scored) > topK {
		return scored[:topK]
	}
	return scored
}
