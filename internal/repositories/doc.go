// Package repositories implements SQLite persistence for run history and the resolution cache.
//
// Key Implementations:
//   - [RunRepository] : Pipeline runs and their per-entry resolutions, soft deleted
//   - [ResolutionCache] : Exact matches keyed by normalized title and artist, reused across runs
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
