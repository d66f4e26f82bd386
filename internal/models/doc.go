// Package models defines the values exchanged between the Spotify access layer and its callers.
//
// The package contains three categories of types:
//
// 1. Credentials: short and long lived secrets
//   - [AccessToken] : bearer secret, granted scopes and expiry; replaced wholesale, never mutated
//   - [Credential] : durable refresh secret owned by the credential worker and persisted in sqlite
//
// 2. Pagination envelopes
//   - [Page] : offset/total window returned by each page fetch
//   - [CursorPage] : cursor window used by followed artists
//
// 3. Payloads: opaque domain data mapped from API responses
//   - [User], [Playlist], [PlaylistExport], [Track], [Album], [Artist], [Show], [Episode], [Category], [SearchResults]
//
// [Credential] implements the [Model] interface providing ID, timestamps and validation.
package models
