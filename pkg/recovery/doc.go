// Package recovery routes authentication failures through a prioritized
// chain of strategies: refresh the token, rebuild the session, wait out a
// network blip, or — for fingerprint mismatches — terminate the session
// outright. Attempt counts are tracked per error type against a global cap;
// exceeding it forces logout with the "max_recovery_attempts" reason.
//
// A bounded rolling history of handled errors is kept in memory, and a
// Reporter hook lets callers ship it to external diagnostics.
package recovery
