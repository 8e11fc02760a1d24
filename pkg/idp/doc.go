// Package idp wraps the remote identity provider behind a minimal Provider
// interface: exchange a refresh credential for a fresh credential set.
//
// OAuthProvider implements the refresh-token grant via golang.org/x/oauth2.
// When the token response omits an expiry, the access token's JWT exp claim
// is used (parsed unverified, for scheduling only), falling back to a
// configured TTL. Provider failures are classified into the pkg/autherr
// taxonomy so the recovery chain can act on them.
package idp
