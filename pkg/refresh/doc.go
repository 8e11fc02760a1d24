// Package refresh guarantees at most one outstanding credential refresh
// cycle per instance, with bounded retry and backoff on top of the session
// manager's single provider call.
//
// Concurrent RefreshWithRetry callers join the in-flight cycle and settle
// together. The cycle's lifecycle is tracked by an explicit state machine
// (idle → refreshing → settled) rather than boolean flags. An optional
// background loop opportunistically refreshes while the credential still
// has a comfortable margin before expiry; failures on that path are logged
// and swallowed, since nothing blocks on it.
package refresh
