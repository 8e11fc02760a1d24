package session

import "errors"

var (
	// ErrNoSession indicates no session exists for this instance.
	ErrNoSession = errors.New("session.not_found")

	// ErrNoStore indicates the manager was built without a store.
	ErrNoStore = errors.New("session.no_store")

	// ErrNoProvider indicates the manager was built without an identity provider.
	ErrNoProvider = errors.New("session.no_provider")

	// ErrManagerClosed indicates an operation on a closed manager.
	ErrManagerClosed = errors.New("session.manager_closed")
)
