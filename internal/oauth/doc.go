// Package oauth keeps OAuth2 user tokens fresh.
//
// Manager.EnsureValidToken hands back a usable CredentialSet for a namespace. Still-valid tokens are returned
// untouched. Otherwise it refreshes once per namespace, client ID and refresh token at a time (singleflight),
// retries transient failures with backoff, and persists the rotated tokens through a compare-and-set on the
// TokenStore so that a concurrent writer in another process is detected instead of silently overwritten.
//
// The shared refresh runs on a context detached from the caller that started it and bounded by
// WithRefreshTimeout. Callers stop waiting when their own context ends; the refresh and its swap still complete.
package oauth
