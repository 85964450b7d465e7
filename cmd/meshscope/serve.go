package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"meshscope/internal/handler"
	"meshscope/internal/hub"
	"meshscope/internal/logging"
	"meshscope/internal/publish"
	"meshscope/internal/repository/sqlite"
	"meshscope/internal/service"
	"meshscope/internal/version"
	"meshscope/internal/watcher"
)

//go:embed web/*
var webFS embed.FS

// Serve command flags
var (
	listenAddr string
	dbPath     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the topology over HTTP, SSE and WebSocket",
	Long: `Start the HTTP server. The last discovered topology is served at
/api/graph, scans are triggered with POST /api/devscan or over the /ws
WebSocket, and completed scans are pushed to /events and /ws clients.

When scan.interval is set, scans also run periodically. When mqtt.enabled
is set, every completed graph is published to the configured topic. Edits
to the coordinator section of the config file apply to the next scan.`,
	Example: `  # Serve on the default port with the default coordinator
  meshscope serve

  # Custom coordinator and listen address
  meshscope serve --coordinator fd00::212:4b00:615:a4d2 --addr :8080`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if listenAddr != "" {
		cfg.Server.Addr = listenAddr
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if err := initLogging(cfg.Log.Level); err != nil {
		return err
	}
	defer logging.Sync()

	logging.Info("Starting meshscope",
		zap.String("version", version.Full()),
		zap.String("config", path),
	)
	logging.Debug("Configuration\n" + cfg.Summary())

	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()
	logging.Info("Database opened", zap.String("path", cfg.Database.Path))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventBus := service.NewEventBus()
	engine := newEngine(cfg, eventBus)
	topology := service.NewTopologyService(engine, repo, eventBus, coordinatorResolver(cfg), cfg.Scan.RunTimeout.Duration())
	if err := topology.Restore(ctx); err != nil {
		logging.Warn("Starting without stored topology", zap.Error(err))
	}

	pushHub := hub.New(topology)
	hubEvents := make(chan service.Event, 256)
	eventBus.Subscribe(hubEvents)

	var sink *publish.Sink
	if cfg.MQTT.Enabled {
		sink, err = publish.Connect(publish.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
			Retain:   cfg.MQTT.Retain,
		})
		if err != nil {
			return err
		}
		defer sink.Close()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pushHub.Run(gctx) })
	g.Go(func() error { return pushHub.Forward(gctx, hubEvents) })
	g.Go(func() error {
		return service.NewPoller(topology, cfg.Scan.Interval.Duration()).Run(gctx)
	})

	// A --coordinator flag pins the address for the life of the process.
	if path != "" && coordinator == "" {
		w := watcher.New(path, func() { reloadCoordinator(path, topology.SetCoordinator) })
		g.Go(func() error { return w.Watch(gctx) })
	}

	if sink != nil {
		mqttEvents := make(chan service.Event, 64)
		eventBus.Subscribe(mqttEvents)
		g.Go(func() error { return sink.Run(gctx, mqttEvents) })
	}

	webContent, err := fs.Sub(webFS, "web")
	if err != nil {
		return fmt.Errorf("embedded web content: %w", err)
	}

	mux := http.NewServeMux()
	handler.NewTopologyHandler(topology).Register(mux)
	mux.Handle("GET /events", pushHub)
	mux.HandleFunc("GET /ws", pushHub.ServeWS)
	mux.Handle("/", http.FileServer(http.FS(webContent)))

	// WriteTimeout stays unset: SSE streams and scans outlive any fixed bound.
	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: handler.Chain(mux,
			handler.Recover,
			handler.CORS,
			handler.Logger,
		),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		logging.Info("Server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logging.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logging.Info("Server stopped")
	return nil
}
