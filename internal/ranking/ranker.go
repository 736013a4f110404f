// Package ranking scores stored chunk vectors against a query vector.
package ranking

import (
	"cmp"
	"slices"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// Result is a ranked candidate with its similarity score.
type Result struct {
	Candidate domain.Candidate
	Score     float64
}

// Source returns the provenance entry for the result.
func (r Result) Source() domain.Source {
	return domain.Source{
		ChunkID:    r.Candidate.ChunkID,
		DocumentID: r.Candidate.DocumentID,
		Filename:   r.Candidate.Filename,
		Score:      r.Score,
	}
}

// Ranker selects the top-k candidates for a query vector.
type Ranker interface {
	Rank(query []float32, candidates []domain.Candidate, k int) ([]Result, error)
}

// LinearRanker scores every candidate with cosine similarity.
type LinearRanker struct {
	// MinScore is an exclusive lower bound. Values below zero are treated as zero.
	MinScore float64
}

// NewLinearRanker creates a LinearRanker with the given exclusive score floor.
func NewLinearRanker(minScore float64) *LinearRanker {
	if minScore < 0 {
		minScore = 0
	}
	return &LinearRanker{MinScore: minScore}
}

// Rank returns at most k results with score > MinScore, highest first.
// Equal scores keep the candidates' input order.
func (r *LinearRanker) Rank(query []float32, candidates []domain.Candidate, k int) ([]Result, error) {
	if k <= 0 || len(candidates) == 0 {
		return nil, nil
	}
	floor := max(r.MinScore, 0)

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		score, err := CosineSimilarity(query, c.Embedding)
		if err != nil {
			return nil, err
		}
		if !(score > floor) {
			continue
		}
		results = append(results, Result{Candidate: c, Score: score})
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}
