package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"teamsync/api/internal/app"
	"teamsync/api/internal/archive"
	"teamsync/api/internal/config"
	"teamsync/api/internal/logging"
	"teamsync/api/internal/search"
	"teamsync/api/internal/store"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}
	dataStore := store.NewPostgresStore(db)

	var meiliClient *search.Meili
	var index search.Indexer
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
		index = meiliClient
	}
	searchService := search.NewService(index, logger)

	var snapshotArchive *archive.MinIO
	if strings.TrimSpace(cfg.MinIOEndpoint) != "" {
		snapshotArchive, err = archive.New(archive.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("archive client failed")
		}
		if err := snapshotArchive.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Msg("archive bucket unavailable, snapshots will not be archived until it exists")
		}
		logger.Info().Str("bucket", cfg.MinIOBucket).Msg("archiving accepted snapshots")
	}

	var service *app.Service
	if snapshotArchive != nil {
		service = app.New(dataStore, snapshotArchive, searchService, logger)
	} else {
		service = app.New(dataStore, nil, searchService, logger)
	}
	if err := service.Bootstrap(ctx); err != nil {
		logger.Warn().Err(err).Msg("bootstrap error (will retry on next restart)")
	}

	httpServer := app.NewHTTPServer(service, cfg.SyncToken, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("teamsync API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}
