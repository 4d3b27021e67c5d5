package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/sapling"
	"github.com/aretw0/sapling/internal/config"
	"github.com/aretw0/sapling/pkg/adapters/file"
	"github.com/aretw0/sapling/pkg/adapters/memory"
	"github.com/aretw0/sapling/pkg/adapters/redis"
	"github.com/aretw0/sapling/pkg/adapters/remote"
	"github.com/aretw0/sapling/pkg/observability"
	"github.com/aretw0/sapling/pkg/persistence/middleware"
	"github.com/aretw0/sapling/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// eventBuffer is the per-subscriber backlog of the event broker.
const eventBuffer = 256

// Runtime bundles an engine with the collaborators built for it.
type Runtime struct {
	Engine   *sapling.Engine
	Config   config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Broker   *observability.Broker

	closers []func() error
}

// Close releases the engine and its stores.
func (r *Runtime) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// NewRuntime initializes a sapling engine from cfg with standard CLI conventions.
// Redis backs the session model store and lock when cfg.Redis.Addr is set;
// otherwise cfg.Store.Dir, when set, keeps the model in local files.
func NewRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger, extra ...sapling.Option) (*Runtime, error) {
	rt := &Runtime{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		Broker:   observability.NewBroker(eventBuffer),
	}

	// 1. Metrics & Hooks
	rt.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observability.NewMetrics(rt.Registry)
	if err != nil {
		return nil, fmt.Errorf("error registering metrics: %w", err)
	}

	opts := []sapling.Option{
		sapling.WithLogger(logger),
		sapling.WithLifecycleHooks(observability.Chain(
			metrics.Hooks(),
			rt.Broker.Hooks(),
			createDebugHooks(logger),
		)),
		sapling.WithConstructionTiming(cfg.Construction),
		sapling.WithPlaybackTiming(cfg.Playback),
		sapling.WithTolerance(cfg.Tolerance),
		sapling.WithClassifier(newClassifier(cfg, logger)),
	}
	if cfg.Session != "" {
		opts = append(opts, sapling.WithSession(cfg.Session))
	}

	// 2. Persistence
	var store ports.ModelStore
	var redisStore *redis.Store
	if cfg.Redis.Addr != "" {
		redisStore = redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		)
		if err := redisStore.Ping(ctx); err != nil {
			_ = redisStore.Close()
			return nil, fmt.Errorf("redis unavailable at %s: %w", cfg.Redis.Addr, err)
		}
		store = redisStore
		opts = append(opts, sapling.WithLocker(redis.NewLocker(redisStore.Client(), redisStore.Prefix())))
	} else if cfg.Store.Dir != "" {
		store = file.New(cfg.Store.Dir)
	}
	if store != nil {
		active, previous, err := cfg.Store.Keys()
		if err != nil {
			if redisStore != nil {
				_ = redisStore.Close()
			}
			return nil, err
		}
		if active != nil {
			store = middleware.Chain(store, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
				ActiveKey:    active,
				FallbackKeys: previous,
			}))
		}
		opts = append(opts, sapling.WithStore(store))
	}

	// 3. Initialize
	rt.Engine = sapling.New(append(opts, extra...)...)
	rt.closers = append(rt.closers, rt.Engine.Close)
	if redisStore != nil {
		rt.closers = append(rt.closers, redisStore.Close)
	}

	logger.Debug("Engine ready",
		"session", rt.Engine.SessionID(),
		"classifier", cfg.Classifier.Mode,
		"redis", cfg.Redis.Addr != "",
		"store_dir", cfg.Store.Dir,
		"encrypted", cfg.Store.Key != "")
	return rt, nil
}

func newClassifier(cfg config.Config, logger *slog.Logger) ports.Classifier {
	if cfg.Classifier.Mode == config.ClassifierRemote {
		return remote.New(cfg.Classifier.URL,
			remote.WithTimeout(cfg.Classifier.Timeout),
			remote.WithLogger(logger),
		)
	}

	var opts []memory.ClassifierOption
	if cfg.Classifier.LegacyTraces {
		opts = append(opts, memory.WithLegacyTraces())
	}
	return memory.NewClassifier(opts...)
}
