package sync

import (
	"slices"
	"strings"

	"github.com/courier-im/courier/internal/provider"
)

// Merge unions any number of per-direction result lists into one
// chronological, SID-deduplicated sequence. Records sharing a SID collapse
// to one entry (the later-listed occurrence wins, matching last-writer
// semantics); records without a SID are always distinct. When limit > 0
// and the merged set is larger, the oldest records are dropped: recency is
// prioritized over completeness.
func Merge(limit int, lists ...[]provider.Record) []provider.Record {
	var merged []provider.Record
	bySID := make(map[string]int)
	for _, list := range lists {
		for _, rec := range list {
			if rec.SID == "" {
				merged = append(merged, rec)
				continue
			}
			if i, seen := bySID[rec.SID]; seen {
				merged[i] = rec
				continue
			}
			bySID[rec.SID] = len(merged)
			merged = append(merged, rec)
		}
	}

	// Stable sort over the first-seen order, so equal timestamps keep a
	// deterministic sequence even for SID-less records.
	slices.SortStableFunc(merged, func(a, b provider.Record) int {
		if c := a.DateCreated.Compare(b.DateCreated); c != 0 {
			return c
		}
		return strings.Compare(a.SID, b.SID)
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[len(merged)-limit:]
	}
	return merged
}
