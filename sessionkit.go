package sessionkit

import (
	"errors"
	"log/slog"

	"github.com/dmitrymomot/sessionkit/pkg/apiclient"
	"github.com/dmitrymomot/sessionkit/pkg/broadcast"
	"github.com/dmitrymomot/sessionkit/pkg/config"
	"github.com/dmitrymomot/sessionkit/pkg/fingerprint"
	"github.com/dmitrymomot/sessionkit/pkg/idp"
	"github.com/dmitrymomot/sessionkit/pkg/logger"
	"github.com/dmitrymomot/sessionkit/pkg/recovery"
	"github.com/dmitrymomot/sessionkit/pkg/refresh"
	"github.com/dmitrymomot/sessionkit/pkg/session"
	"github.com/dmitrymomot/sessionkit/pkg/storage"
)

// Kit bundles the session manager, token refresh service, authenticated
// API client, and error recovery chain into one explicitly constructed
// instance. Applications build a Kit at their composition root and pass it
// down (or carry it in context); there is no package-level singleton, so
// tests construct isolated instances freely.
type Kit struct {
	Sessions *session.Manager
	Tokens   *refresh.Service
	API      *apiclient.Client
	Recovery *recovery.Chain
}

// New wires the full stack. A store and an identity provider are the only
// required inputs; everything else has working defaults (in-process
// broadcast channel, host fingerprint collector, no-op redirect).
// Component configs come from the environment (SESSIONKIT_* variables, .env
// supported) and are overridden by the With*Config options.
func New(opts ...KitOption) (*Kit, error) {
	o := &kitOptions{
		redirect: func(string) {},
	}
	if err := config.Load(&o.sessionCfg); err != nil {
		return nil, err
	}
	if err := config.Load(&o.refreshCfg); err != nil {
		return nil, err
	}
	if err := config.Load(&o.apiCfg); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.New(logger.WithAttr(logger.Component("sessionkit")))
	}

	sessionOpts := []session.Option{
		session.WithConfig(o.sessionCfg),
		session.WithLogger(o.log),
	}
	if o.store != nil {
		sessionOpts = append(sessionOpts, session.WithStore(o.store))
	}
	if o.tabStore != nil {
		sessionOpts = append(sessionOpts, session.WithTabStore(o.tabStore))
	}
	if o.provider != nil {
		sessionOpts = append(sessionOpts, session.WithProvider(o.provider))
	}
	if o.collector != nil {
		sessionOpts = append(sessionOpts, session.WithCollector(o.collector))
	}
	if o.channel != nil {
		sessionOpts = append(sessionOpts, session.WithChannel(o.channel))
	}

	mgr, err := session.New(sessionOpts...)
	if err != nil {
		return nil, err
	}

	tokens, err := refresh.NewService(mgr,
		refresh.WithConfig(o.refreshCfg),
		refresh.WithLogger(o.log),
	)
	if err != nil {
		_ = mgr.Close()
		return nil, err
	}

	chainOpts := append([]recovery.ChainOption{
		recovery.WithStrategies(recovery.DefaultStrategies(mgr, tokens, o.redirect)...),
		recovery.WithLogout(mgr.Clear),
		recovery.WithRedirect(o.redirect),
		recovery.WithLogger(o.log),
	}, o.chainOpts...)
	chain := recovery.NewChain(chainOpts...)

	api, err := apiclient.NewClient(tokens, mgr,
		apiclient.WithConfig(o.apiCfg),
		apiclient.WithRecovery(chain),
		apiclient.WithRedirect(o.redirect),
		apiclient.WithLogger(o.log),
	)
	if err != nil {
		_ = tokens.Close()
		_ = mgr.Close()
		return nil, err
	}

	return &Kit{
		Sessions: mgr,
		Tokens:   tokens,
		API:      api,
		Recovery: chain,
	}, nil
}

// Close tears the stack down in reverse construction order. No refresh
// timer or background loop fires after Close returns.
func (k *Kit) Close() error {
	return errors.Join(k.Tokens.Close(), k.Sessions.Close())
}

type kitOptions struct {
	store      storage.Store
	tabStore   storage.Store
	provider   idp.Provider
	collector  fingerprint.Collector
	channel    broadcast.Channel
	redirect   recovery.RedirectFunc
	log        *slog.Logger
	sessionCfg session.Config
	refreshCfg refresh.Config
	apiCfg     apiclient.Config
	chainOpts  []recovery.ChainOption
}

// KitOption configures New.
type KitOption func(*kitOptions)

// WithStore sets the shared session store (memory, file, or Redis).
func WithStore(s storage.Store) KitOption {
	return func(o *kitOptions) { o.store = s }
}

// WithTabStore sets the instance-private store holding the tab identifier.
func WithTabStore(s storage.Store) KitOption {
	return func(o *kitOptions) { o.tabStore = s }
}

// WithProvider sets the identity provider used for token refresh.
func WithProvider(p idp.Provider) KitOption {
	return func(o *kitOptions) { o.provider = p }
}

// WithCollector sets the device fingerprint collector.
func WithCollector(c fingerprint.Collector) KitOption {
	return func(o *kitOptions) { o.collector = c }
}

// WithChannel sets the cross-instance broadcast channel.
func WithChannel(ch broadcast.Channel) KitOption {
	return func(o *kitOptions) { o.channel = ch }
}

// WithRedirect sets the callback fired with a reason code on unrecoverable
// failures ("session_expired", "device_changed", "max_recovery_attempts").
func WithRedirect(fn recovery.RedirectFunc) KitOption {
	return func(o *kitOptions) {
		if fn != nil {
			o.redirect = fn
		}
	}
}

// WithLogger sets the structured logger shared by all components.
func WithLogger(log *slog.Logger) KitOption {
	return func(o *kitOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// WithSessionConfig overrides session manager configuration.
func WithSessionConfig(cfg session.Config) KitOption {
	return func(o *kitOptions) { o.sessionCfg = cfg }
}

// WithRefreshConfig overrides refresh service configuration.
func WithRefreshConfig(cfg refresh.Config) KitOption {
	return func(o *kitOptions) { o.refreshCfg = cfg }
}

// WithAPIConfig overrides API client configuration.
func WithAPIConfig(cfg apiclient.Config) KitOption {
	return func(o *kitOptions) { o.apiCfg = cfg }
}

// WithRecoveryOptions appends extra recovery chain options (custom
// strategies, a Reporter, a different attempt cap).
func WithRecoveryOptions(opts ...recovery.ChainOption) KitOption {
	return func(o *kitOptions) { o.chainOpts = append(o.chainOpts, opts...) }
}
