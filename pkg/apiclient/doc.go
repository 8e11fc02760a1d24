// Package apiclient is the authenticated outbound request layer. Every
// request goes out with a freshly validated bearer token, bounded by a
// concurrency semaphore and a per-request retry budget with backoff.
//
// The 401 protocol: re-validate the session; if invalid, clear it and fire
// the redirect callback. If still nominally valid, force one token refresh
// and retry the request exactly once with the new token. A second
// consecutive 401 is treated as a persistent authentication failure.
// Network errors and 5xx responses are retried; 4xx responses other than
// 401 are returned to the caller untouched.
package apiclient
