// Package tasks builds playlists from followed artists with real-time progress reporting.
//
// # Core Operations
//
// The [Engine] interface defines three operations:
//
//  1. [Engine.Run] : Full build
//     - Reads the profile and the followed artists
//     - Keeps the selected artists in followed order
//     - Collects their tracks with [BuildTracks]
//     - Creates the playlist, replaces its items and uploads the optional cover
//
//  2. [Engine.Counts] : Track count preview
//     - Counts each selected artist on its own with [CountTracks]
//     - Stops at the next artist or album when the context is cancelled
//
//  3. [Engine.Artists] : Followed artists in server order
//
// # Aggregation
//
// [BuildTracks] visits artists strictly one after another. For each artist it reads the releases
// (singles only or albums and singles), falls back to the top tracks when there are none, orders
// releases by [ParseReleaseDate] when chronological, orders each release by disc and track number,
// keeps only tracks crediting the artist and drops any track id already collected. A chronological
// build is sorted once more by (release date, track number) and every build is capped at [MaxTracks].
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking. [RateLimitReporter] forwards fetcher backoff waits.
//
// # Implementation
//
// [PlaylistEngine] implements [Engine] with dependencies on:
//   - [services.Service] : Spotify catalog reads and playlist writes
//   - [RunRecorder] : Optional run history (repositories.RunRepository)
//   - [CountCache] : Optional count cache (repositories.TrackCountRepository)
package tasks
