package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/hashpulse/internal/adapter/blob"
	"github.com/pscheid92/hashpulse/internal/adapter/memory"
	"github.com/pscheid92/hashpulse/internal/adapter/metrics"
	"github.com/pscheid92/hashpulse/internal/adapter/postgres"
	"github.com/pscheid92/hashpulse/internal/adapter/redis"
	"github.com/pscheid92/hashpulse/internal/adapter/template"
	"github.com/pscheid92/hashpulse/internal/apiclient"
	"github.com/pscheid92/hashpulse/internal/domain"
	"github.com/pscheid92/hashpulse/internal/instagram"
	"github.com/pscheid92/hashpulse/internal/oauth"
	"github.com/pscheid92/hashpulse/internal/platform/config"
	"github.com/pscheid92/hashpulse/internal/sentiment"
	"github.com/pscheid92/hashpulse/internal/twitter"
)

// Runtime is a fully wired Service plus the resources it holds open.
type Runtime struct {
	Service  *Service
	Registry *prometheus.Registry
	closers  []func()
}

// Close releases the resources in reverse order of acquisition.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// Bootstrap connects the configured backends and registers every task type.
func Bootstrap(ctx context.Context, cfg *config.Config, clock clockwork.Clock) (*Runtime, error) {
	rt := &Runtime{Registry: metrics.NewRegistry()}

	store, err := rt.openStore(ctx, cfg, clock)
	if err != nil {
		rt.Close()
		return nil, err
	}

	blobs, err := openBlobs(cfg, clock)
	if err != nil {
		rt.Close()
		return nil, err
	}

	providerMetrics := metrics.NewProviderMetrics(rt.Registry)
	api := func(provider string) *apiclient.Client {
		return apiclient.New(apiclient.Config{
			Provider:  provider,
			Timeout:   cfg.HTTPTimeout,
			RateLimit: cfg.ProviderRateLimit,
			Metrics:   providerMetrics,
		})
	}

	// every attempt may use a full HTTP timeout plus the longest backoff
	refreshBudget := time.Duration(cfg.TokenRefreshMaxAttempts) * (cfg.HTTPTimeout + 16*cfg.TokenRefreshBackoff)
	tokens := oauth.NewManager(store,
		oauth.NewTokenClient(api("twitter_oauth"), cfg.TwitterTokenBaseURL),
		clock,
		oauth.WithRetry(cfg.TokenRefreshMaxAttempts, cfg.TokenRefreshBackoff),
		oauth.WithRefreshTimeout(refreshBudget),
		oauth.WithMetrics(metrics.NewTokenMetrics(rt.Registry)),
	)

	svc := NewService(store, blobs, template.NewRenderer(), clock, metrics.NewTaskMetrics(rt.Registry))
	svc.Register(instagram.TaskType, instagram.NewTaskFactory(instagram.NewClient(api("apify"), cfg.ApifyBaseURL)))
	svc.Register(twitter.TaskType, twitter.NewTaskFactory(twitter.NewClient(api("twitter"), cfg.TwitterAPIBaseURL), tokens))
	svc.Register(sentiment.TaskType, sentiment.NewTaskFactory(sentiment.NewChatClient(api("llm"), cfg.LLMBaseURL, cfg.LLMModel)))
	rt.Service = svc

	slog.Info("Runtime ready", "kv_backend", cfg.KVBackend, "blob_backend", cfg.BlobBackend, "tasks", svc.TaskTypes())
	return rt, nil
}

func (rt *Runtime) openStore(ctx context.Context, cfg *config.Config, clock clockwork.Clock) (domain.Store, error) {
	switch cfg.KVBackend {
	case config.BackendRedis:
		rdb, err := redis.NewClient(ctx, cfg.RedisURL, redis.Options{
			Metrics: metrics.NewRedisMetrics(rt.Registry),
			Clock:   clock,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = rdb.Close() })
		return redis.NewStore(rdb), nil

	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, metrics.NewDBMetrics(rt.Registry))
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return postgres.NewStore(pool), nil

	default:
		return memory.NewStore(), nil
	}
}

func openBlobs(cfg *config.Config, clock clockwork.Clock) (domain.BlobStore, error) {
	if cfg.BlobBackend == config.BackendMemory {
		return blob.NewMemoryStore(clock), nil
	}
	store, err := blob.NewOSStore(cfg.BlobRoot, clock)
	if err != nil {
		return nil, err
	}
	return store, nil
}
