// Package sessionkit is a client-side session and token lifecycle toolkit:
// proactive token refresh with single-flight deduplication, device
// fingerprint validation, authenticated HTTP with automatic 401 recovery,
// a prioritized error recovery chain, and cross-instance session
// synchronization over a pluggable broadcast channel.
//
// The entry point is New, which wires the full stack from a session store
// and an identity provider:
//
//	store, err := storage.NewFileStore(path, 0)
//	if err != nil { ... }
//	kit, err := sessionkit.New(
//	    sessionkit.WithStore(store),
//	    sessionkit.WithProvider(idp.NewOAuthProvider(oauthCfg, 15*time.Minute)),
//	    sessionkit.WithRedirect(func(reason string) { ... }),
//	)
//
// Each subsystem also works standalone; see the packages under pkg/.
package sessionkit
