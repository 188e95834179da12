package storage

import (
	"context"
	"fmt"
)

// LookupFunc returns the subset of candidate keys already present in storage.
// Implementations must resolve the whole batch in a single round trip.
type LookupFunc[K comparable] func(ctx context.Context, keys []K) (map[K]struct{}, error)

// InsertFunc bulk-inserts rows in one statement. Conflicts on the natural key
// must be no-ops, not errors; a failure rolls back the whole batch.
type InsertFunc[R any] func(ctx context.Context, rows []R) error

// PersistNew filters candidates down to records whose natural key is not yet
// stored and writes them with one bulk insert. It returns the records that
// passed filtering, not the rows the database ultimately kept: a concurrent
// worker may have raced the same key into storage, which the conflict-ignoring
// insert absorbs (accepted at-least-once semantics).
func PersistNew[R any, K comparable](
	ctx context.Context,
	candidates []R,
	key func(R) K,
	lookup LookupFunc[K],
	insert InsertFunc[R],
) ([]R, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	keys := make([]K, 0, len(candidates))
	seen := make(map[K]struct{}, len(candidates))

	for _, candidate := range candidates {
		k := key(candidate)
		if _, dup := seen[k]; dup {
			continue
		}

		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	// One lookup per batch, never per record.
	existing, err := lookup(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("lookup existing keys: %w", err)
	}

	fresh := make([]R, 0, len(candidates))
	inserted := make(map[K]struct{}, len(candidates))

	for _, candidate := range candidates {
		k := key(candidate)
		if _, ok := existing[k]; ok {
			continue
		}

		if _, dup := inserted[k]; dup {
			continue
		}

		inserted[k] = struct{}{}
		fresh = append(fresh, candidate)
	}

	if len(fresh) == 0 {
		return nil, nil
	}

	if err := insert(ctx, fresh); err != nil {
		return nil, fmt.Errorf("bulk insert: %w", err)
	}

	return fresh, nil
}
