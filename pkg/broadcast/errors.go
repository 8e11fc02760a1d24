package broadcast

import "errors"

var (
	// ErrChannelClosed indicates an operation on a closed channel.
	ErrChannelClosed = errors.New("broadcast: channel closed")

	// ErrNilHandler indicates Subscribe was called with a nil handler.
	ErrNilHandler = errors.New("broadcast: nil handler")
)
