package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"intelplatform/auth"
	"intelplatform/config"
	"intelplatform/crypto"
	"intelplatform/db"
	"intelplatform/logger"
	"intelplatform/store"
)

// app holds what every command needs: logger, migrated database and the
// credential service.
type app struct {
	cfg   config.Config
	log   *zap.Logger
	conn  *sql.DB
	keys  crypto.Keys
	auth  *auth.Service
	redis *redis.Client
}

func newApp(ctx context.Context) (*app, error) {
	cfg := config.AppConfig
	log, err := logger.New(cfg.Debug)
	if err != nil {
		return nil, err
	}

	conn, err := db.InitDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, conn: conn, keys: crypto.DeriveKeys(cfg.SessionKey)}
	if cfg.SessionKeyGenerated {
		log.Warn("no session key configured; generated a random one, sessions will be invalidated on restart")
	}

	tracker, err := a.newTracker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.auth = auth.NewService(
		store.NewUsers(conn),
		tracker,
		auth.NewTokens(a.keys.Token, cfg.TokenTTL),
		auth.Options{
			Threshold:      cfg.LockoutThreshold,
			Window:         cfg.LockoutWindow,
			UsernamePolicy: cfg.UsernamePolicy,
			AvatarDir:      cfg.AvatarDir,
		},
		log,
	)
	return a, nil
}

// newTracker keeps failed logins in Redis when redis_addr is set, so that
// several server processes share one lockout state.
func (a *app) newTracker(ctx context.Context) (auth.FailureTracker, error) {
	if a.cfg.RedisAddr == "" {
		return auth.NewMemoryTracker(a.cfg.LockoutWindow), nil
	}
	a.redis = redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", a.cfg.RedisAddr, err)
	}
	a.log.Info("login failures tracked in redis", zap.String("addr", a.cfg.RedisAddr))
	return auth.NewRedisTracker(a.redis, a.cfg.LockoutWindow), nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.conn != nil {
		a.conn.Close()
	}
	_ = a.log.Sync()
}
