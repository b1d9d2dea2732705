package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vanshika/lifetrace/internal/config"
	"github.com/vanshika/lifetrace/internal/graph"
	"github.com/vanshika/lifetrace/internal/logging"
	"github.com/vanshika/lifetrace/internal/repository"
	"github.com/vanshika/lifetrace/internal/server"
	"github.com/vanshika/lifetrace/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to open timeline store", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn("closing timeline store failed", "error", err)
		}
	}()

	timeline := service.NewTimelineService(store, logger)
	imports := service.NewImportService(store, nil, logger)
	apiHandlers := server.NewAPIHandlers(logger, timeline, imports, cfg.Import.TakeoutDir)

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.StoreHealthService{Store: store},
		API:              apiHandlers,
		AllowedOrigins:   cfg.HTTP.AllowedOrigins(),
		AllowCredentials: cfg.HTTP.AllowCredentials,
	})

	srv := server.New(logger, cfg.HTTP, router)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped unexpectedly", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func buildStore(ctx context.Context, logger *slog.Logger, cfg config.Config) (service.TimelineStore, error) {
	switch cfg.Storage.Driver {
	case config.DriverGraph:
		client, err := graph.NewNeo4jClient(ctx, graph.Options{
			URI:            cfg.Graph.URI,
			Database:       cfg.Graph.Database,
			Username:       cfg.Graph.Username,
			Password:       cfg.Graph.Password,
			MaxConnections: cfg.Graph.MaxConnections,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("connected to graph", "uri", cfg.Graph.URI, "database", cfg.Graph.Database)
		return repository.NewGraphStore(client), nil
	default:
		store, err := repository.OpenSQLite(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("opened sqlite store", "path", cfg.Storage.SQLitePath)
		return store, nil
	}
}
