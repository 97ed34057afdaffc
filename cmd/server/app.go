package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"quill/internal/auth"
	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/db"
	"quill/internal/events"
	"quill/internal/storage"
)

// app holds the long-lived dependencies shared by the commands.
type app struct {
	cfg      *config.Config
	store    storage.Storage
	sessions auth.SessionStore
	cache    cache.Cache
	events   events.Publisher
	closers  []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openCache(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openEvents(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	if a.cfg.Storage == config.StorageMemory {
		a.store = storage.NewMemStorage()
		a.sessions = auth.NewMemSessions()
		log.Info().Msg("using in-memory storage")
		return nil
	}

	driver := db.DriverPostgres
	if a.cfg.Storage == config.StorageSQLite {
		driver = db.DriverSQLite
		// Create data dir for DB
		if err := os.MkdirAll(filepath.Dir(a.cfg.DatabaseURL), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	conn, err := db.Open(driver, a.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { conn.Close() })
	if err := db.Migrate(ctx, conn); err != nil {
		return err
	}
	a.store = storage.NewSQLStorage(conn)
	a.sessions = auth.NewSQLSessions(conn)
	log.Info().Str("driver", driver).Msg("connected to database")
	return nil
}

func (a *app) openCache(ctx context.Context) error {
	if a.cfg.RedisURL == "" {
		a.cache = cache.NewLRU(a.cfg.CacheSize, a.cfg.CacheTTL)
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.RedisURL,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	})
	a.closers = append(a.closers, func() { client.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	a.cache = cache.NewRedis(client, a.cfg.CacheTTL)
	log.Info().Str("addr", a.cfg.RedisURL).Msg("connected to redis")
	return nil
}

func (a *app) openEvents() error {
	if a.cfg.NATSURL == "" {
		a.events = events.Noop{}
		return nil
	}
	pub, err := events.NewNATSPublisher(events.Config{
		URL:           a.cfg.NATSURL,
		MaxReconnects: 10,
		ReconnectWait: 2 * time.Second,
		ClientID:      a.cfg.NATSClientID,
	})
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	a.events = pub
	a.closers = append(a.closers, pub.Close)
	log.Info().Str("url", a.cfg.NATSURL).Msg("NATS publisher initialized")
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
