// Package backoff provides retry delay strategies (exponential with jitter,
// linear, fixed) shared by the token refresh service and the authenticated
// HTTP client, plus a context-aware Wait helper.
package backoff
