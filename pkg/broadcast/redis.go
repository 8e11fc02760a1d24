package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/sessionkit/pkg/logger"
)

// RedisChannel carries session events over Redis pub/sub, the cross-instance
// transport when "tabs" are separate processes or hosts. Messages are JSON
// on the wire; undecodable payloads are logged and dropped.
type RedisChannel struct {
	client   *redis.Client
	channel  string
	log      *slog.Logger
	pubsub   *redis.PubSub
	handlers map[*Handler]Handler
	cancel   context.CancelFunc
	done     chan struct{}
	closed   bool
	mu       sync.Mutex
}

// NewRedisChannel subscribes to the named Redis channel and starts the
// receive loop. The caller owns the client's lifecycle.
func NewRedisChannel(client *redis.Client, channel string, log *slog.Logger) (*RedisChannel, error) {
	if channel == "" {
		channel = "sessionkit:events"
	}
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := client.Subscribe(ctx, channel)
	// Force the subscription to be established before returning, so a
	// Publish immediately after construction is observable.
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, err
	}

	c := &RedisChannel{
		client:   client,
		channel:  channel,
		log:      log,
		pubsub:   pubsub,
		handlers: make(map[*Handler]Handler),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go c.receiveLoop()
	return c, nil
}

func (c *RedisChannel) receiveLoop() {
	defer close(c.done)
	for raw := range c.pubsub.Channel() {
		var msg Message
		if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
			c.log.Warn("broadcast: dropping undecodable message", logger.Error(err))
			continue
		}

		c.mu.Lock()
		handlers := make([]Handler, 0, len(c.handlers))
		for _, h := range c.handlers {
			handlers = append(handlers, h)
		}
		c.mu.Unlock()

		for _, h := range handlers {
			h(msg)
		}
	}
}

func (c *RedisChannel) Publish(msg Message) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrChannelClosed
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.client.Publish(context.Background(), c.channel, string(data)).Err()
}

func (c *RedisChannel) Subscribe(h Handler) (func(), error) {
	if h == nil {
		return nil, ErrNilHandler
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrChannelClosed
	}

	key := &h
	c.handlers[key] = h
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, key)
	}, nil
}

func (c *RedisChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	err := c.pubsub.Close()
	<-c.done
	return err
}
