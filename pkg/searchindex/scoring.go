package searchindex

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Fusion weights for hybrid search. Keyword matches nudge the ranking, the
// vector signal dominates.
const (
	VectorWeight  = 0.7
	KeywordWeight = 0.3
)

// CosineSimilarity returns 0 when either vector has no magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// VectorScore maps cosine similarity onto [0,1] the way Elasticsearch scores
// cosine dense_vector fields.
func VectorScore(a, b []float32) float64 {
	return (1 + CosineSimilarity(a, b)) / 2
}

// KeywordScore is the fraction of distinct query terms present in content.
func KeywordScore(query, content string) float64 {
	terms := Tokenize(query)
	if len(terms) == 0 {
		return 0
	}
	have := make(map[string]struct{})
	for _, tok := range Tokenize(content) {
		have[tok] = struct{}{}
	}

	seen := make(map[string]struct{}, len(terms))
	matched := 0
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		if _, ok := have[term]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(seen))
}

func Fuse(vectorScore, keywordScore float64) float64 {
	return VectorWeight*vectorScore + KeywordWeight*keywordScore
}

// Tokenize lowercases and splits on anything that is not a letter or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// SortHits orders by score descending, then chunk id ascending.
func SortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
}

// OwnedOnly drops hits that belong to anyone but owner.
func OwnedOnly(hits []Hit, owner string) []Hit {
	out := hits[:0]
	for _, h := range hits {
		if h.UserID == owner {
			out = append(out, h)
		}
	}
	return out
}
