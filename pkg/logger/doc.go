// Package logger provides a context-aware wrapper around log/slog with
// functional options, helper attribute constructors, and transparent
// injection of context values into every record.
//
// The single factory New builds a *slog.Logger from Option functions:
// output format (text or json), minimum level, static attributes, and
// ContextExtractor callbacks that pull request-scoped values (a tab ID,
// a session ID) out of context at log time.
//
//	log := logger.New(
//	    logger.WithDevelopment("my-app"),
//	    logger.WithContextValue("tab_id", ctxKeyTabID),
//	)
//	logger.SetAsDefault(log)
//
// Helper constructors in attr.go (Error, SessionID, TabID, Strategy, ...)
// keep attribute naming consistent across components. Error and friends
// produce an empty Attr for nil input, so call sites need no nil checks.
package logger
