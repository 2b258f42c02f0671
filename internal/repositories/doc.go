// Package repositories implements SQLite persistence for fanlist's local state.
//
// Key Implementations:
//   - [RunRepository] : Build history with status tracking and soft deletes
//   - [TrackCountRepository] : Track count previews keyed by artist and release filter
//   - [CountCacheAdapter] : Exposes [TrackCountRepository] as the count preview cache, with expiry
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table counters kept in the table_sequence table.
package repositories
