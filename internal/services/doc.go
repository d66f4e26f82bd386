// Package services implements resilient access to the Spotify Web API.
//
// # Layers
//
// [APIService] sends one authenticated request and turns non-2xx responses into [shared.HTTPError].
// It never retries.
//
// [Retrier] wraps a single call with error classification:
//   - 429: wait Retry-After plus jitter, doubled per retry and capped at [MaxBackoff]
//   - 401: force one token refresh through the [TokenRefresher] and retry immediately
//   - 502, 503, 504: exponential backoff
//   - anything else: returned as [shared.APIError] without retrying
//
// [Paginator] walks offset/total collections lazily, one retried request per page.
//
// [SpotifyClient] composes the three into domain operations returning [models] types.
//
// # Token Ownership
//
// The long-lived refresh credential is owned by the [CredentialWorker] goroutine. Foreground code
// only ever holds access tokens, installed into the [RefreshCoordinator] as whole pointers:
//
//	coordinator --RequestToken--> worker --Mint--> token endpoint
//	coordinator <--TokenReply---- worker
//
// Replies travel on buffered channels so a worker never blocks on a caller that timed out.
//
// # Error Handling
//
// Callers can branch on [shared.KindOf] or match sentinel errors:
//   - [shared.ErrNotAuthenticated] : no token is installed
//   - [shared.ErrRefreshFailed] : the worker could not mint a token
//   - [shared.ErrAPIRequest] : any [shared.APIError]
package services
