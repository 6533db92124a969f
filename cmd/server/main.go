// Command server runs the flight scraper API. It only wires dependencies
// together and manages the process lifecycle.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-flight-scraper/internal/cache"
	"github.com/tbourn/go-flight-scraper/internal/config"
	"github.com/tbourn/go-flight-scraper/internal/extract"
	"github.com/tbourn/go-flight-scraper/internal/fetcher"
	httpapi "github.com/tbourn/go-flight-scraper/internal/http"
	"github.com/tbourn/go-flight-scraper/internal/observability"
	"github.com/tbourn/go-flight-scraper/internal/services"
	"github.com/tbourn/go-flight-scraper/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = ""

const shutdownGrace = 15 * time.Second

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := sysutil.NewLogger(os.Stdout, cfg.LogPretty)
	log.Logger = logger
	sysutil.SetLogLevel(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, sysutil.FirstNonEmpty(version, os.Getenv("APP_VERSION"), "dev"))
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	tables := extract.DefaultTables()
	if cfg.ReferenceDataPath != "" {
		if tables, err = extract.LoadTables(cfg.ReferenceDataPath); err != nil {
			log.Fatal().Err(err).Str("path", cfg.ReferenceDataPath).Msg("reference data")
		}
	}

	store, err := cache.Open(cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Cache.Backend).Msg("cache open failed")
	}

	f, err := fetcher.New(cfg.Fetch, nil, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("fetcher setup failed")
	}

	svc := &services.FlightService{
		Fetcher:      f,
		Extractor:    extract.New(tables),
		Store:        store,
		FetchTimeout: cfg.Fetch.Timeout,
		Log:          logger.With().Str("component", "flights").Logger(),
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, svc, cfg, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("cache_backend", cfg.Cache.Backend).
			Dur("cache_ttl", cfg.Cache.TTL).
			Str("api_base", cfg.APIBasePath).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("cache close")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("server stopped")
}
