// Package ranking orders vector search hits the same way for every backend.
package ranking

import (
	"sort"

	"github.com/futig/medical-chatbot/internal/entity"
)

// SortByScore orders hits by descending similarity. Equal scores fall back
// to ascending chunk ID, which is ingestion order within a document.
func SortByScore(hits []entity.ScoredChunk) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

// TopK sorts hits and keeps at most k of them.
func TopK(hits []entity.ScoredChunk, k int) []entity.ScoredChunk {
	SortByScore(hits)
	if k < 0 {
		k = 0
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
