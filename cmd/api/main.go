package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/safar/go-dealer-router/internal/allocation"
	"github.com/safar/go-dealer-router/internal/catalog"
	"github.com/safar/go-dealer-router/internal/config"
	"github.com/safar/go-dealer-router/internal/database"
	"github.com/safar/go-dealer-router/internal/httpapi"
	"github.com/safar/go-dealer-router/internal/logger"
	"github.com/safar/go-dealer-router/internal/metrics"
	"github.com/safar/go-dealer-router/internal/store"
	"github.com/safar/go-dealer-router/internal/store/memstore"
)

var version = "dev"

type backingStore interface {
	allocation.Store
	catalog.Repository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logg := logger.New(logger.Options{
		ServiceName: cfg.Log.ServiceName,
		Level:       logger.ParseLevel(cfg.Log.Level),
		Format:      cfg.Log.Format,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"version":      version,
		"store_driver": cfg.Database.Driver,
	})

	var backing backingStore
	switch cfg.Database.Driver {
	case config.StoreDriverMemory:
		backing = memstore.New()
		logg.Warn(ctx, "store.in_memory")
	default:
		db, err := database.NewConnection(&cfg.Database)
		if err != nil {
			logg.Error(ctx, "store.connect_failed", err)
			os.Exit(1)
		}
		defer db.Close()
		backing = store.NewPostgres(db)
		logg.Info(ctx, "store.connected")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	allocator := allocation.New(backing,
		allocation.WithLogger(logg),
		allocation.WithMetrics(metrics.NewAllocationMetrics(reg)),
		allocation.WithOrderNumbers(allocation.NewOrderNumber, cfg.Allocation.OrderNumberAttempts),
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Catalog:   catalog.NewService(backing, logg, cfg.Allocation.NearbyRadiusKm),
		Allocator: allocator,
		Logger:    logg,
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Service:   cfg.Log.ServiceName,
		Version:   version,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "port", cfg.Server.Port), "server.starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err, ok := <-serverErr:
		if ok {
			logg.Error(ctx, "server.failed", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "server.shutting_down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "server.shutdown_failed", err)
		return
	}
	logg.Info(ctx, "server.stopped")
}
