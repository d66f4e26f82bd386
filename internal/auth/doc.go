// Package auth implements the Spotify authorization-code flow and the on-disk token cache.
//
// [Flow.Authenticate] reuses a valid cached token, refreshes an expired one when it carries a
// refresh secret, and otherwise runs [Flow.Login]:
//
//	NeedAuth -> AwaitingCallback -> TokenExchanged -> Persisted
//	NeedAuth -> ManualFallback   -> TokenExchanged -> Persisted
//
// Any state may end in Failed. The callback wait is bounded by the configured timeout; when the
// loopback listener cannot bind or no valid redirect arrives, the user is asked to paste the
// redirect URL instead. Exchange failures are terminal for the invocation.
//
// [TokenStore] persists one JSON record with owner-only permissions. A missing or corrupt file
// is a cache miss.
package auth
