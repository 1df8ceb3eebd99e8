package model

import (
	"encoding/json"
	"sort"
)

// AnalysisResult is a sparse mapping from analysis block id to that block's
// validated JSON value. Populated keys are exactly the set of requested block
// ids; each value's shape is defined by its block's schema fragment.
type AnalysisResult map[string]json.RawMessage

// Keys returns the populated block ids in sorted order.
func (r AnalysisResult) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether the result contains the given block id.
func (r AnalysisResult) Has(blockID string) bool {
	_, ok := r[blockID]
	return ok
}
