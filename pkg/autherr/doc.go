// Package autherr defines the closed taxonomy of authentication failures used
// across the session, refresh, and recovery packages, plus heuristics for
// classifying opaque provider and transport errors into it.
//
// A classified failure is represented by *Error, which implements the standard
// error interface and supports errors.Is/errors.As matching by Type:
//
//	err := autherr.New(autherr.RefreshFailed, "provider unavailable",
//	    autherr.WithCode("max_retries_exceeded"))
//
//	if autherr.IsType(err, autherr.RefreshFailed) {
//	    // handle
//	}
//
// Classify turns arbitrary errors (provider responses, net errors, HTTP
// statuses) into the taxonomy. Errors that are already classified pass
// through unchanged.
package autherr
