// Package main runs the ledger API server.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/minibank/ledger-api/cmd/httpserver"
	"github.com/minibank/ledger-api/internal/middleware"
	"github.com/minibank/ledger-api/pkg/configpkg"
	"github.com/minibank/ledger-api/pkg/dbpkg"

	_ "github.com/lib/pq"
)

const shutdownTimeout = 30 * time.Second

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := middleware.GetLogger(config)

	db, err := dbpkg.Setup(config.DBDriver, config.DBSource)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot connect to database")
	}

	server, err := httpserver.New(db, logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create server")
	}

	httpServer := &http.Server{
		Addr:    config.ServerAddress,
		Handler: server,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Msg("LEDGER API SERVER HAS STARTED")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("cannot start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}

	// Let queued recalculations finish so balances are not left stale.
	if err := server.Queue.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("job queue shutdown")
	}

	server.Cache.Close()
}
