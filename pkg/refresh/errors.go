package refresh

import "errors"

// ErrNoManager indicates the service was built without a session manager.
var ErrNoManager = errors.New("refresh.no_manager")
