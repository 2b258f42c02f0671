// Package models defines the entities fanlist works with.
//
// Catalog types are transient, request-scoped values decoded from the Spotify Web API:
//   - [User] : the authenticated account that owns created playlists
//   - [Artist] : a followed artist, identified by id
//   - [Album] : a release with its raw release date and precision
//   - [ReleaseTrack] : a track as listed on a release, with its credited artists
//   - [Track] : one aggregated track with its ordering keys
//   - [Playlist] : a playlist created by a build
//
// Persisted types live in the local sqlite database:
//   - [BuildRun] : history of builds, implementing [Model]
//   - [TrackCount] : cached results of the track count preview
package models
