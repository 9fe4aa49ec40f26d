// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coah80/coleswebsite-sub000/internal/filter"
	"github.com/coah80/coleswebsite-sub000/internal/logging"
	"github.com/coah80/coleswebsite-sub000/internal/routing"
	"github.com/coah80/coleswebsite-sub000/internal/watch"
	"github.com/coah80/coleswebsite-sub000/pkg/config"
	"github.com/coah80/coleswebsite-sub000/pkg/core"
	"github.com/coah80/coleswebsite-sub000/pkg/plugins"
	"github.com/coah80/coleswebsite-sub000/pkg/plugins/httpget"
	"github.com/coah80/coleswebsite-sub000/pkg/plugins/kafka"
	"github.com/coah80/coleswebsite-sub000/pkg/plugins/mqtt5"
	"github.com/coah80/coleswebsite-sub000/pkg/plugins/rabbitmq"
	"github.com/coah80/coleswebsite-sub000/pkg/plugins/sse"
	"github.com/coah80/coleswebsite-sub000/pkg/plugins/ws"
	"github.com/coah80/coleswebsite-sub000/pkg/presence"
	"github.com/coah80/coleswebsite-sub000/pkg/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "/etc/presence/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	snapStore, err := store.New(cfg.Store.Backend, cfg.Store.RedisAddr, cfg.Store.StoreTTL())
	if err != nil {
		logger.Error("failed to create snapshot store", "error", err)
		os.Exit(1)
	}

	deliveryLog := logging.NewDeliveryLogger(logger.With("component", "delivery"))
	registry := plugins.NewRegistry(logger)

	registerSurfaces(cfg, registry, snapStore, logger, deliveryLog)
	registerSinks(cfg, registry, logger)

	routeTable := routing.NewTable()
	for _, rc := range cfg.Routes {
		routeTable.Add(rc.ToRoute())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry.ConnectSinks(ctx)

	filt := filter.New(cfg.Filter.HiddenActivities, cfg.Filter.HideSpotify)
	mgr := watch.NewManager(routeTable, snapStore, registry.Sinks(), filt, logger, deliveryLog)

	opts := presence.Options{
		GatewayURL:  cfg.Gateway.URL,
		APIKey:      cfg.Gateway.APIKey,
		BackoffBase: config.ParseDurationOr(cfg.Gateway.BackoffBase, time.Second),
		BackoffCap:  config.ParseDurationOr(cfg.Gateway.BackoffCap, 30*time.Second),
		Logger:      logger,
	}
	for _, w := range cfg.Watchers {
		if err := mgr.Watch(ctx, w.UserID, opts); err != nil {
			logger.Error("watcher rejected", "user_id", w.UserID, "error", err)
		}
	}

	watcher := config.NewWatcher(configPath, routeTable, logger)
	go watcher.Watch(ctx)

	registry.StartSurfaces(ctx, mgr)

	logger.Info("presence engine started", "config", configPath, "watchers", len(cfg.Watchers))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down presence engine")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	mgr.Shutdown()
	registry.StopAll(shutdownCtx)
	snapStore.Close()

	logger.Info("presence engine stopped")
}

func registerSurfaces(
	cfg *config.Config,
	reg *plugins.Registry,
	snapStore core.SnapshotStore,
	logger *slog.Logger,
	deliveryLog *logging.DeliveryLogger,
) {
	for _, s := range cfg.Surfaces {
		switch s.Type {
		case "websocket":
			reg.RegisterSurface(ws.New(s.Name, s.Port, logger, deliveryLog))
		case "sse":
			reg.RegisterSurface(sse.New(s.Name, s.Port, logger, deliveryLog))
		case "http_get":
			reg.RegisterSurface(httpget.New(s.Name, s.Port, snapStore, logger))
		default:
			logger.Warn("unknown surface type", "name", s.Name, "type", s.Type)
		}
	}
}

func registerSinks(cfg *config.Config, reg *plugins.Registry, logger *slog.Logger) {
	for _, s := range cfg.Sinks {
		switch s.Type {
		case "kafka":
			brokers := strings.Split(s.Config["brokers"], ",")
			reg.RegisterSink(kafka.New(s.Name, brokers, s.Config["topic"], logger))
		case "mqtt5":
			reg.RegisterSink(mqtt5.New(s.Name, s.Config["broker_url"], s.Config["topic"], logger))
		case "rabbitmq":
			reg.RegisterSink(rabbitmq.New(s.Name, s.Config["url"], s.Config["queue"], logger))
		default:
			logger.Warn("unknown sink type", "name", s.Name, "type", s.Type)
		}
	}
}
