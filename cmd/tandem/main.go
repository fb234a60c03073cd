package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"tandem/contract"
	"tandem/domain"
	"tandem/infrastructure/http/server"
	"tandem/internal"
	"tandem/observability"
	"tandem/repositories"
	"tandem/runtime"
	"tandem/runtime/workers"
	"tandem/services"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Tandem terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Returning instead of exiting lets every deferred close (tables, storage) run first.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Durable storage
	storage, err := repositories.NewStorage(repositories.Options{
		Driver:     config.StorageDriver,
		SQLiteDir:  config.SQLiteDir,
		BadgerPath: config.BadgerFilepath,
		BoltPath:   config.BoltFilepath,
		Debug:      logger.Enabled(ctx, slog.LevelDebug),
	}, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		logger.Info("Closing storage...", "driver", config.StorageDriver)
		_ = storage.Close()
	}()

	// 3. Metrics & rooms
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	chats := runtime.NewDirectory(domain.PartyChat, storage,
		func(id domain.RoomID, table contract.Table) *services.ChatRoom {
			return services.NewChatRoom(id, table, config.WriteTimeout, metrics, logger)
		}, logger, metrics)
	tandems := runtime.NewDirectory(domain.PartyTandem, storage,
		func(id domain.RoomID, table contract.Table) *services.PartnershipRoom {
			return services.NewPartnershipRoom(id, table, config.WriteTimeout, metrics, logger)
		}, logger, metrics)
	// Rooms close before storage: defers run in reverse order.
	defer func() {
		logger.Info("Closing rooms...")
		chats.Close()
		tandems.Close()
	}()

	// 4. HTTP server
	handler := server.NewServer(chats, tandems, registry, metrics, server.Options{
		ConnectionBufferSize: config.ConnectionBufferSize,
		MaxMessageBytes:      config.MaxMessageBytes,
		MessageRate:          config.MessageRate,
		MessageBurst:         config.MessageBurst,
	}, logger)
	address := config.Address()
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	httpServer := &http.Server{
		Addr:              address,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 5. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Supervision: blocks until the signal, then drains the HTTP server.
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(
		workers.NewHTTPServerWorker(httpServer, listener, config.ShutdownTimeout, logger),
		workers.NewReporterWorker(config.ReportInterval, metrics, logger, chats, tandems),
	)
	sup.Run(ctx)

	logger.Info("Program stopped cleanly")
	return exitOK, nil
}
