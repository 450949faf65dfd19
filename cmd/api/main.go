package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pg "receta-veterinaria/internal/adapters/storage/postgres"
	"receta-veterinaria/internal/config"
	"receta-veterinaria/internal/observability/metrics"
	"receta-veterinaria/internal/platform/logger"
	"receta-veterinaria/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    "receta-api",
	})

	opts := router.Options{
		Logger:  log,
		Metrics: metrics.New(),
	}

	// Pool compartido: se abre una vez acá y se drena en el shutdown.
	if cfg.DatabaseURL != "" {
		pool, err := pg.Open(context.Background(), pg.Config{
			DSN:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("open database")
		}
		defer pool.Close()
		opts.DB = pool
	} else {
		log.Warn().Msg("DATABASE_URL not set, using in-memory store")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(opts),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
