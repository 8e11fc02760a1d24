package broadcast

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

const busTopic = "sessionkit:events"

// EventBusChannel delivers messages between managers living in the same
// process, the analogue of a native broadcast bus shared by tabs of one
// origin. Delivery is asynchronous so a slow subscriber never blocks the
// publisher.
type EventBusChannel struct {
	bus      evbus.Bus
	handlers map[*Handler]any
	closed   bool
	mu       sync.Mutex
}

// NewEventBusChannel creates an in-process channel on a fresh bus.
func NewEventBusChannel() *EventBusChannel {
	return &EventBusChannel{
		bus:      evbus.New(),
		handlers: make(map[*Handler]any),
	}
}

func (c *EventBusChannel) Publish(msg Message) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrChannelClosed
	}

	c.bus.Publish(busTopic, msg)
	return nil
}

func (c *EventBusChannel) Subscribe(h Handler) (func(), error) {
	if h == nil {
		return nil, ErrNilHandler
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrChannelClosed
	}

	// Each subscription gets its own func value so Unsubscribe can target it.
	key := &h
	fn := func(msg Message) { h(msg) }
	if err := c.bus.SubscribeAsync(busTopic, fn, false); err != nil {
		return nil, err
	}
	c.handlers[key] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if stored, ok := c.handlers[key]; ok {
			_ = c.bus.Unsubscribe(busTopic, stored)
			delete(c.handlers, key)
		}
	}, nil
}

func (c *EventBusChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for key, fn := range c.handlers {
		_ = c.bus.Unsubscribe(busTopic, fn)
		delete(c.handlers, key)
	}
	c.bus.WaitAsync()
	return nil
}
