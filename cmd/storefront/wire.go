package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"goflare.io/storefront"
	"goflare.io/storefront/cache"
	"goflare.io/storefront/cart"
	"goflare.io/storefront/catalog"
	"goflare.io/storefront/config"
	"goflare.io/storefront/driver"
	"goflare.io/storefront/event"
	"goflare.io/storefront/storage"
)

const eventDedupTTL = 24 * time.Hour

// app holds the service and everything that must be closed with it.
type app struct {
	service storefront.Service
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// 1. Redis（快照或快取需要時）
	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient, err = driver.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
	}

	// 2. 購物車快照儲存
	repo, err := buildStorage(ctx, cfg, redisClient, logger, a)
	if err != nil {
		return nil, err
	}

	// 3. 商品目錄
	var products catalog.Repository = catalog.NewClient(cfg.CatalogURL, logger, catalog.WithTimeout(cfg.CatalogTimeout))
	switch cfg.CatalogCache {
	case config.CacheMemory:
		mem, err := cache.NewMemoryCache(logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, mem.Close)
		products = catalog.NewCachedRepository(products, mem, cfg.CatalogCacheTTL, logger)
	case config.CacheRedis:
		products = catalog.NewCachedRepository(products, cache.NewRedisCache(redisClient, logger), cfg.CatalogCacheTTL, logger)
	}

	store := cart.NewStore(repo, products, logger, cart.WithKey(cfg.CartKey))

	// 4. 事件（可選）
	var bus storefront.Bus
	opts := []storefront.Option{storefront.WithSyncAcrossSessions(cfg.SyncAcrossSessions)}
	if cfg.NATSURL != "" {
		conn, err := driver.ConnectNATS(cfg.NATSURL, "storefront", logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = conn.Drain() })
		bus = conn
		if redisClient != nil {
			opts = append(opts, storefront.WithEventRepository(
				event.NewRedisRepository(redisClient, eventDedupTTL, logger)))
		}
	}

	svc, err := storefront.NewService(products, store, bus, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start storefront: %w", err)
	}
	a.service = svc
	a.closers = append(a.closers, func() {
		if err := svc.Close(); err != nil {
			logger.Warn("Failed to close storefront", zap.Error(err))
		}
	})

	return a, nil
}

func buildStorage(ctx context.Context, cfg config.Config, redisClient *redis.Client, logger *zap.Logger, a *app) (storage.Repository, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return storage.NewMemoryRepository(), nil
	case config.StoreRedis:
		return storage.NewRedisRepository(redisClient, "storefront:", logger), nil
	case config.StorePostgres:
		pool, err := driver.ConnectSQL(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		repo := storage.NewPostgresRepository(pool, driver.NewTransactionManager(pool, logger), logger)
		if err = repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return storage.NewFileRepository(cfg.DataDir, logger)
	}
}
