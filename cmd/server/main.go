package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stockflow/backend/internal/cache"
	"stockflow/backend/internal/config"
	"stockflow/backend/internal/httpapi"
	"stockflow/backend/internal/logger"
	"stockflow/backend/internal/metrics"
	"stockflow/backend/internal/printing"
	"stockflow/backend/internal/service"
	"stockflow/backend/internal/store"
	"stockflow/backend/internal/store/memory"
	pgstore "stockflow/backend/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "stockflow"}).Zerolog().Fatal().Err(err).Msg("invalid configuration")
	}

	logg := logger.New(logger.Options{
		ServiceName: "stockflow",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
	})
	log := logg.Zerolog()

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid security configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		if cfg.AutoMigrate {
			if err := pgstore.Migrate(ctx, pg.DB(), "up"); err != nil {
				log.Fatal().Err(err).Msg("database migration failed")
			}
			log.Info().Msg("migrations applied")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info().Str("repository", "postgres").Msg("repository ready")
	} else {
		repo = memory.NewSeeded()
		log.Info().Str("repository", "memory").Msg("repository ready")
		if memory.UsesDefaultCredentials() {
			log.Warn().Msg("in-memory store is using default seed passwords; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD outside local development")
		}
	}

	itemCache := cache.ItemCache(cache.NoopItemCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisItemCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using noop item cache")
			_ = redisCache.Close()
		} else {
			itemCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info().Str("cache", "redis").Msg("item cache ready")
		}
	} else {
		log.Info().Str("cache", "noop").Msg("item cache ready")
	}

	m := metrics.New()
	svc := service.New(repo, service.Options{
		Cache:    itemCache,
		CacheTTL: cfg.ItemCacheTTL(),
		Metrics:  m,
		Logger:   logg,
		Shop: printing.Shop{
			Name:       cfg.ShopName,
			Tagline:    cfg.ShopTagline,
			Address:    cfg.ShopAddress,
			ShareBrand: cfg.ShareBrand,
			Location:   cfg.Location(),
		},
		PhoneCountryCode: cfg.PhoneCountryCode,
		PublicBaseURL:    cfg.PublicBaseURL,
		MaxLabels:        cfg.MaxLabelsPerPrint,
		CartIdle:         cfg.CartIdleTimeout(),
	})

	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), repo)
	created, err := auth.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("no user accounts exist; set ADMIN_PASSWORD to create the first admin")
	}
	if created {
		log.Info().Str("username", cfg.AdminUsername).Msg("bootstrap admin created")
	}

	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Logger:        logg,
		Metrics:       m,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Msg("stockflow backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.DatabaseURL != "" && cfg.AdminPassword != "" && len(cfg.AdminPassword) < 8 {
		return fmt.Errorf("ADMIN_PASSWORD must be at least 8 characters")
	}
	return nil
}
