package broadcast

// Handler consumes a broadcast message. Handlers must not block: backends
// deliver best-effort and may drop messages behind a slow handler.
type Handler func(Message)

// Channel is an origin-scoped publish/subscribe bus visible to every
// instance of the application. Delivery is best-effort and unordered across
// instances; consumers must not assume publish order.
type Channel interface {
	// Publish sends a message to all subscribed instances, including the
	// publishing one (receivers filter by TabID).
	Publish(msg Message) error

	// Subscribe registers a handler and returns an unsubscribe function.
	Subscribe(h Handler) (func(), error)

	// Close tears the channel down. Publish and Subscribe fail afterwards.
	Close() error
}
