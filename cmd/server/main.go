package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/okdoc/teleconsult/internal/adapters/http"
	"github.com/okdoc/teleconsult/internal/app"
	"github.com/okdoc/teleconsult/internal/config"
	"github.com/okdoc/teleconsult/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var st store.Store
	if cfg.Mongo.URI != "" {
		connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
		st, err = store.NewMongo(connectCtx, cfg.Mongo.URI, cfg.Mongo.DB)
		connectCancel()
		if err != nil {
			log.Fatal().Err(err).Msg("mongo connection failed")
		}
	} else {
		log.Warn().Msg("no mongo uri configured, using in-memory store")
		st = store.NewMemory()
	}

	orch := app.NewOrchestrator(st)
	orch.CancelOnDisconnect = cfg.Consult.CancelOnDisconnect

	r := router.SetupRouter(ctx, cfg, orch)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("teleconsult server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := st.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("store close failed")
	}
	log.Info().Msg("Server exited gracefully")
}
