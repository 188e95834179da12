// Package changeset implements incremental change detection over remote
// snapshots. Given the current listing of a collection and the watermarks
// recorded on the previous poll, it computes which items need re-processing.
// Pure functions, no I/O.
package changeset

import "sort"

// Item is one entry of a remote snapshot: a stable ID plus a monotonic
// last-modified marker (epoch seconds).
type Item struct {
	ID           int64
	LastModified int64
}

// State maps item ID to the last-seen modification marker for one collection.
// An entry with value v means the item has been scheduled/ingested as of
// modification time v.
type State map[int64]int64

// Clone returns an independent copy of the state.
func (s State) Clone() State {
	next := make(State, len(s))
	for id, mod := range s {
		next[id] = mod
	}

	return next
}

// Trim returns a copy of the state capped to the n entries with the highest
// modification markers. Watermark state otherwise grows without bound for
// long-lived collections because items pruned from the remote snapshot are
// never evicted by Detect.
func (s State) Trim(n int) State {
	if n <= 0 || len(s) <= n {
		return s.Clone()
	}

	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		if s[ids[i]] != s[ids[j]] {
			return s[ids[i]] > s[ids[j]]
		}

		return ids[i] > ids[j]
	})

	next := make(State, n)
	for _, id := range ids[:n] {
		next[id] = s[id]
	}

	return next
}

// Result holds the outcome of one detection pass.
type Result struct {
	// ChangedIDs lists items that are new or whose marker differs from the
	// recorded watermark, sorted ascending. Set semantics: no duplicates.
	ChangedIDs []int64
	// Next is the updated state, ready to be carried into the next cycle.
	Next State
	// Dropped counts malformed snapshot entries (zero ID or marker) that were
	// discarded. Callers log a warning when non-zero.
	Dropped int
}

// Detect compares a remote snapshot against the previously recorded state.
// New items and items whose marker changed are reported; items with an
// identical marker are skipped. Items absent from the snapshot are retained
// in the state untouched (eviction is Trim's job). The prior state is never
// mutated, and the returned state is reconstructible by replaying all
// observed (id, marker) pairs in any order with last-value-wins.
func Detect(snapshot []Item, prior State) Result {
	next := prior.Clone()

	changed := make(map[int64]struct{})
	dropped := 0

	for _, item := range snapshot {
		if item.ID == 0 || item.LastModified == 0 {
			dropped++
			continue
		}

		seen, ok := next[item.ID]
		if ok && seen == item.LastModified {
			continue
		}

		next[item.ID] = item.LastModified
		changed[item.ID] = struct{}{}
	}

	ids := make([]int64, 0, len(changed))
	for id := range changed {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return Result{ChangedIDs: ids, Next: next, Dropped: dropped}
}
