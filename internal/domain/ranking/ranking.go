// Package ranking turns player aggregates into an ordered leaderboard.
//
// Order is total descending, then player id ascending. Every entry gets a
// distinct 1-based rank equal to its position, so equal totals never share a
// rank and the output is a pure function of the input.
package ranking

import (
	"slices"

	"github.com/okian/podium/internal/domain/model"
)

// Less reports whether a ranks ahead of b.
func Less(a, b model.PlayerAggregate) bool {
	if a.Total != b.Total {
		return a.Total > b.Total // higher total ranks earlier
	}
	return a.PlayerID < b.PlayerID // tie-breaker by id asc
}

func compare(a, b model.PlayerAggregate) int {
	switch {
	case Less(a, b):
		return -1
	case Less(b, a):
		return 1
	default:
		return 0
	}
}

// Rank orders every aggregate and assigns ranks.
func Rank(aggs map[string]model.PlayerAggregate) []model.LeaderboardEntry {
	if len(aggs) == 0 {
		return []model.LeaderboardEntry{}
	}

	sorted := make([]model.PlayerAggregate, 0, len(aggs))
	for id, a := range aggs {
		// map key is authoritative
		a.PlayerID = id
		sorted = append(sorted, a)
	}
	slices.SortFunc(sorted, compare)

	out := make([]model.LeaderboardEntry, len(sorted))
	for i, a := range sorted {
		out[i] = model.LeaderboardEntry{
			Rank:       i + 1,
			PlayerID:   a.PlayerID,
			PlayerName: a.PlayerName,
			Total:      a.Total,
		}
	}
	return out
}

// TopN returns the first n ranked entries. n <= 0 yields an empty slice.
func TopN(aggs map[string]model.PlayerAggregate, n int) []model.LeaderboardEntry {
	if n <= 0 {
		return []model.LeaderboardEntry{}
	}
	entries := Rank(aggs)
	if n < len(entries) {
		entries = entries[:n]
	}
	return entries
}

// Contains reports whether playerID appears in entries.
func Contains(entries []model.LeaderboardEntry, playerID string) bool {
	return slices.ContainsFunc(entries, func(e model.LeaderboardEntry) bool {
		return e.PlayerID == playerID
	})
}
