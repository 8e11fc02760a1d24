package apiclient

import "errors"

var (
	// ErrNoRefreshService indicates the client was built without a token source.
	ErrNoRefreshService = errors.New("apiclient.no_refresh_service")

	// ErrNoSessionManager indicates the client was built without a session manager.
	ErrNoSessionManager = errors.New("apiclient.no_session_manager")
)
