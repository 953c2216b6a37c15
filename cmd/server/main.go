/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"powerbank-rental-go/internal/api"
	"powerbank-rental-go/internal/common"
	"powerbank-rental-go/internal/config"
	"powerbank-rental-go/internal/listener"
	"powerbank-rental-go/internal/sweeper"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zap.L().Info("Starting power bank rental server", zap.String("addr", cfg.Server.Addr))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	gin.SetMode(cfg.Server.Mode)
	server := api.NewServer(api.ServerConfig{
		Db:         services.DbService,
		Rentals:    services.Rentals,
		Reconciler: services.Reconciler,
		Config:     *cfg,
		Redis:      services.Redis,
	})
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	sweepers := sweeper.New(services.DbService, services.Notifier, cfg.Rental, cfg.Sweeper)
	sweepers.Start(gctx)

	var returns *listener.ReturnListener
	if cfg.Amqp.Enabled {
		returns = listener.NewReturnListener(listener.ReturnListenerConfig{
			Url:       cfg.Amqp.Url,
			Queue:     cfg.Amqp.ReturnQueue,
			Processor: services.Reconciler,
		})
		if err := returns.Start(gctx); err != nil {
			zap.L().Warn("Return event consumer not started, hardware returns arrive over HTTP only", zap.Error(err))
			returns = nil
		}
	}

	g.Go(func() error {
		zap.L().Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("Shutdown signal received, stopping...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if returns != nil {
			returns.Stop()
		}
		sweepers.Stop()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("Server stopped with error", zap.Error(err))
		return
	}
	zap.L().Info("Server stopped gracefully")
}
