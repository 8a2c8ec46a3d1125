package condition

import "sort"

// Candidate is one stock eligible for ranking by a priority factor.
type Candidate struct {
	Code  string
	Value *float32 // nil if the priority factor is null for this stock/day
}

// Rank orders candidates by their priority-factor value: ascending if
// ascending is true (lower value ranks first, e.g. cheaper PER first),
// descending otherwise (e.g. higher ROE first). Candidates with a null
// value always sort after every candidate with a known value, regardless of
// direction; ties (equal value, or both null) break by ascending stock
// code for determinism.
func Rank(candidates []Candidate, ascending bool) []Candidate {
	out := append([]Candidate(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Value == nil && b.Value == nil {
			return a.Code < b.Code
		}
		if a.Value == nil {
			return false
		}
		if b.Value == nil {
			return true
		}
		if *a.Value == *b.Value {
			return a.Code < b.Code
		}
		if ascending {
			return *a.Value < *b.Value
		}
		return *a.Value > *b.Value
	})
	return out
}
