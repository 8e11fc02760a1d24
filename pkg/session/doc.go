// Package session owns the canonical authentication session for one
// application instance ("tab") and keeps it valid across restarts, sibling
// instances, and transient provider failures.
//
// The Manager is the single writer of the in-memory session. It:
//
//   - validates the session against expiry and the device fingerprint,
//     clearing stale or tampered state as a side effect;
//   - refreshes credentials through the identity provider with single-flight
//     deduplication, so concurrent callers share one provider call;
//   - arms a proactive refresh timer at expiresAt − RefreshThreshold
//     (immediately when the token is already near expiry);
//   - mirrors every state change into shared storage as one whole-object
//     write and broadcasts lifecycle events (TOKEN_REFRESHED, LOGOUT,
//     SESSION_REVOKED, SUSPICIOUS_ACTIVITY) so siblings converge without a
//     server round-trip.
//
// There is no distributed lock across instances: two instances may refresh
// concurrently, and the last storage write plus the broadcast brings
// siblings into agreement. The provider refresh is idempotent-safe, so the
// race costs at most an extra round trip.
//
// Managers are constructed explicitly and injected; there is no package
// singleton. See the root sessionkit package for the composition helper.
package session
