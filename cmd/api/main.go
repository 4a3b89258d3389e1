package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mucyo/paypack-orders/internal/bootstrap"
	"github.com/mucyo/paypack-orders/internal/controller"
	redisinfra "github.com/mucyo/paypack-orders/internal/infrastructure/redis"
	"github.com/mucyo/paypack-orders/internal/paypack"
	"github.com/mucyo/paypack-orders/internal/repository/postgres"
	"github.com/mucyo/paypack-orders/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "paypack-orders-api", "orders")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	orderRepo := postgres.NewOrderRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Gateway and services ---
	gateway := paypack.NewClient(app.Config.Paypack, app.Logger, app.Metrics)
	orderService := service.NewOrderService(orderRepo, gateway, txManager, app.Logger)
	replayCache := redisinfra.NewReplayCache(app.Redis, app.Config.Redis.ReplayCacheTTL)

	// --- Router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:          app.Pool,
		RedisClient:   app.Redis,
		OrderRepo:     orderRepo,
		OrderService:  orderService,
		ReplayCache:   replayCache,
		WebhookSecret: app.Config.Paypack.WebhookSecret,
		Metrics:       app.Metrics,
		Logger:        app.Logger,
		ServerConfig:  app.Config.Server,
	})

	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		app.Logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		app.Logger.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
	app.Logger.Info().Msg("Server exited")
}
