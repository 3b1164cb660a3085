// Package bootstrap builds the dispatch engine from configuration. The server, the
// CLI and the seed tool share it so every process wires the same store, locker and
// publisher for a given environment.
package bootstrap

import (
	"context"
	"fmt"

	"field-dispatch/internal/config"
	"field-dispatch/internal/core"
	"field-dispatch/internal/db"
	"field-dispatch/internal/events"
	"field-dispatch/internal/lock"
	"field-dispatch/internal/store/memory"
	"field-dispatch/internal/store/postgres"
	"field-dispatch/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Runtime holds the built engine and the resources that must be released on exit.
type Runtime struct {
	Engine *core.Engine
	Store  core.Store
	Pool   *pgxpool.Pool

	closers []func() error
}

// Close releases every resource opened by Build, in reverse order.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
}

// Build connects the configured backends and constructs the engine. When migrate is
// true and the postgres backend is selected, pending migrations are applied first.
func Build(ctx context.Context, cfg *config.Config, log *logrus.Logger, migrate bool) (*Runtime, error) {
	rt := &Runtime{}

	switch cfg.StoreBackend {
	case config.BackendMemory:
		log.Warn("using in-memory store, state is lost on exit")
		rt.Store = memory.New()
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		rt.Pool = pool
		rt.closers = append(rt.closers, func() error { pool.Close(); return nil })
		if migrate {
			if err := db.Migrate(ctx, pool, migrations.FS, log); err != nil {
				rt.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		rt.Store = postgres.New(pool)
	}

	var locker core.Locker
	if cfg.RedisAddress != "" {
		rdb, err := lock.Connect(ctx, cfg.RedisAddress)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		rt.closers = append(rt.closers, rdb.Close)
		locker = lock.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait, log)
		log.WithField("address", cfg.RedisAddress).Info("using redis locks")
	} else {
		if cfg.StoreBackend == config.BackendPostgres {
			log.Warn("REDIS_ADDRESS not set, locks are process-local")
		}
		locker = lock.NewKeyedMutex(cfg.LockWait)
	}

	var publisher core.EventPublisher
	if cfg.PublishingEnabled() {
		pub, err := events.NewPubSubPublisher(ctx, cfg.PubSubProjectID, cfg.PubSubTopic)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("pubsub: %w", err)
		}
		rt.closers = append(rt.closers, pub.Close)
		publisher = pub
		log.WithFields(logrus.Fields{"project": cfg.PubSubProjectID, "topic": cfg.PubSubTopic}).Info("publishing events to pubsub")
	} else {
		publisher = events.NewLogPublisher(log)
	}

	rt.Engine = core.NewEngine(rt.Store, locker, publisher, log, cfg.DefaultActor)
	return rt, nil
}
