package job

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/housebill/internal/billing/domain"
	"github.com/smallbiznis/housebill/internal/clock"
	"github.com/smallbiznis/housebill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("billing.job",
	fx.Provide(
		NewRedisClient,
		NewStore,
		NewLocker,
		NewManager,
		func(m *Manager) domain.JobService { return m },
	),
	fx.Invoke(registerLifecycle),
)

// NewRedisClient returns nil when REDIS_ADDR is not set.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	if !cfg.Redis.Enabled() {
		log.Info("redis disabled, billing jobs use in-process status and locks")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(cfg.Redis.Addr),
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func NewStore(cfg config.Config, client *redis.Client, c clock.Clock) Store {
	if client == nil {
		return NewMemoryStore(cfg.Jobs.StatusTTL, c)
	}
	return NewRedisStore(client, cfg.Jobs.StatusTTL)
}

func NewLocker(client *redis.Client, c clock.Clock) Locker {
	if client == nil {
		return NewMemoryLocker(c)
	}
	return NewRedisLocker(client)
}

func registerLifecycle(lc fx.Lifecycle, m *Manager) {
	lc.Append(fx.Hook{
		OnStop: m.Stop,
	})
}
