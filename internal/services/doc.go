// Package services implements the Spotify Web API client used by fanlist builds.
//
// # Credentials
//
// [TokenProvider] owns the bearer [Credential]. [TokenProvider.Token] returns the access token while it
// has more than 30 seconds left and refreshes it otherwise. A failed refresh clears the credential and
// reports [shared.ErrAuthRequired]; the user has to log in again. [SpotifyAuth] runs the PKCE login.
//
// # Fetcher
//
// [Fetcher] wraps every call in a small state machine:
//
//	attempt ──401──▶ await-refresh ──ok──▶ attempt
//	attempt ──429──▶ await-backoff ──slept──▶ attempt
//	attempt ──2xx──▶ done
//	attempt ──other──▶ failed (shared.APIError)
//
// Backoff sleeps Retry-After + 1 seconds (Retry-After defaults to 1). An optional rate limiter gates every
// attempt and an optional attempt bound turns endless retries into [shared.ErrRetriesExhausted].
//
// # Pagination
//
// [CollectCursor] follows "after" cursors (followed artists). [CollectNext] follows absolute "next" links
// (albums, album tracks). Both keep server order and return an empty slice for an empty listing.
//
// # Catalog and writes
//
// [SpotifyService] implements [Service]: catalog reads used by the aggregation and the playlist writes
// (create, clear + batched append, cover upload). [APIService] exposes raw GETs for debugging.
package services
