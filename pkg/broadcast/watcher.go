package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/sessionkit/pkg/logger"
	"github.com/dmitrymomot/sessionkit/pkg/storage"
)

// StoreWatcher is the storage-mutation fallback channel for environments
// without a real bus. Publish writes the message to a well-known key in the
// shared store; a polling loop watches that key plus the persisted session
// key, synthesizing TOKEN_REFRESHED and LOGOUT events from raw session-value
// changes so siblings converge even when the publisher died before writing a
// message.
type StoreWatcher struct {
	store      storage.Store
	messageKey string
	sessionKey string
	interval   time.Duration
	log        *slog.Logger

	handlers map[*Handler]Handler
	cancel   context.CancelFunc
	done     chan struct{}
	closed   bool
	mu       sync.Mutex

	lastMessage string
	lastSession string
	primed      bool
}

// StoreWatcherConfig configures a StoreWatcher.
type StoreWatcherConfig struct {
	// MessageKey is where published messages are written. Defaults to
	// "sessionkit:broadcast".
	MessageKey string
	// SessionKey, when set, is additionally watched for raw value changes.
	SessionKey string
	// PollInterval defaults to one second.
	PollInterval time.Duration
}

// NewStoreWatcher starts the polling loop immediately.
func NewStoreWatcher(store storage.Store, cfg StoreWatcherConfig, log *slog.Logger) *StoreWatcher {
	if cfg.MessageKey == "" {
		cfg.MessageKey = "sessionkit:broadcast"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &StoreWatcher{
		store:      store,
		messageKey: cfg.MessageKey,
		sessionKey: cfg.SessionKey,
		interval:   cfg.PollInterval,
		log:        log,
		handlers:   make(map[*Handler]Handler),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go w.pollLoop(ctx)
	return w
}

func (w *StoreWatcher) Publish(msg Message) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrChannelClosed
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := w.store.Set(context.Background(), w.messageKey, string(data)); err != nil {
		return err
	}

	// Remember our own write so the poll loop doesn't echo it back;
	// receivers filter by TabID anyway, this just saves a delivery.
	w.mu.Lock()
	w.lastMessage = string(data)
	w.mu.Unlock()
	return nil
}

func (w *StoreWatcher) Subscribe(h Handler) (func(), error) {
	if h == nil {
		return nil, ErrNilHandler
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrChannelClosed
	}

	key := &h
	w.handlers[key] = h
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.handlers, key)
	}, nil
}

func (w *StoreWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	<-w.done
	return nil
}

func (w *StoreWatcher) pollLoop(ctx context.Context) {
	defer close(w.done)

	// Prime baselines so pre-existing values don't fire spurious events.
	w.poll(ctx, true)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx, false)
		}
	}
}

func (w *StoreWatcher) poll(ctx context.Context, prime bool) {
	w.pollMessageKey(ctx, prime)
	if w.sessionKey != "" {
		w.pollSessionKey(ctx, prime)
	}
}

func (w *StoreWatcher) pollMessageKey(ctx context.Context, prime bool) {
	raw, err := w.store.Get(ctx, w.messageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			w.log.Warn("broadcast: poll failed", "key", w.messageKey, logger.Error(err))
		}
		return
	}

	w.mu.Lock()
	changed := raw != w.lastMessage
	w.lastMessage = raw
	w.mu.Unlock()
	if prime || !changed {
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		w.log.Warn("broadcast: dropping undecodable message", logger.Error(err))
		return
	}
	w.deliver(msg)
}

func (w *StoreWatcher) pollSessionKey(ctx context.Context, prime bool) {
	raw, err := w.store.Get(ctx, w.sessionKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		w.log.Warn("broadcast: poll failed", "key", w.sessionKey, logger.Error(err))
		return
	}

	w.mu.Lock()
	prev, wasPrimed := w.lastSession, w.primed
	w.lastSession = raw
	w.primed = true
	w.mu.Unlock()
	if prime || !wasPrimed || raw == prev {
		return
	}

	// Synthesize lifecycle events from the raw session value: removal means
	// logout, any other change means a sibling refreshed.
	msg := Message{Timestamp: time.Now()}
	if raw == "" {
		msg.Type = Logout
	} else {
		msg.Type = TokenRefreshed
		var probe struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal([]byte(raw), &probe); err == nil {
			msg.SessionID = probe.ID
		}
	}
	w.deliver(msg)
}

func (w *StoreWatcher) deliver(msg Message) {
	w.mu.Lock()
	handlers := make([]Handler, 0, len(w.handlers))
	for _, h := range w.handlers {
		handlers = append(handlers, h)
	}
	w.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
}
