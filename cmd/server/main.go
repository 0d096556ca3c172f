package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ignite/listbridge/internal/api"
	"github.com/ignite/listbridge/internal/cache"
	"github.com/ignite/listbridge/internal/config"
	"github.com/ignite/listbridge/internal/ecommerce"
	"github.com/ignite/listbridge/internal/mailchimp"
	"github.com/ignite/listbridge/internal/membership"
	"github.com/ignite/listbridge/internal/repository/postgres"
	"github.com/ignite/listbridge/internal/subscription"

	_ "github.com/lib/pq" // PostgreSQL driver
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("LOG_PRETTY") != "" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("database unreachable")
	}
	cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	client := mailchimp.NewClient(cfg.MailChimp.APIKey, log)

	userMeta := postgres.NewUserMetaRepo(db)
	orderMeta := postgres.NewOrderMetaRepo(db)

	store := membership.NewStore(userMeta, log)
	refresher := membership.NewRefresher(store, client, userMeta, cfg.Server.BaseURL, log)
	orch := subscription.NewOrchestrator(cfg, client, store, orderMeta, userMeta, log)
	pusher := ecommerce.NewPusher(cfg.Ecommerce, cfg.Server.BaseURL, client, orderMeta, log)
	catalog := cache.NewCatalog(rdb, client, log)

	server := api.NewServer(cfg, orch, pusher, store, refresher, catalog, userMeta, client, log)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
