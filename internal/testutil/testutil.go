// Package testutil provides test utilities for toxicrawl: miniredis helpers
// backing the queue and worker unit tests without a real Redis.
package testutil
