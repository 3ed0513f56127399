package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/geoAuth/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// openStore opens the configured session backend. The memory backend runs an
// embedded miniredis so the Redis code path is exercised without a server.
func openStore(ctx context.Context, cfg storeConfig, logger *slog.Logger) (session.Store, func(), error) {
	switch cfg.Backend {
	case backendSQLite:
		store, err := session.OpenSQLite(ctx, cfg.SQLitePath, cfg.Region, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case backendRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisAddr}})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		store := session.NewRedisStore(client, cfg.Prefix, cfg.Region, logger)
		return store, func() {
			_ = store.Close()
			_ = client.Close()
		}, nil

	default:
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded redis: %w", err)
		}
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		store := session.NewRedisStore(client, cfg.Prefix, cfg.Region, logger)
		logger.Debug("using embedded redis", slog.String("addr", mr.Addr()))
		return store, func() {
			_ = store.Close()
			_ = client.Close()
			mr.Close()
		}, nil
	}
}
