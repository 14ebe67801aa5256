package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/caephub/pkg/api"
	"github.com/cuemby/caephub/pkg/config"
	"github.com/cuemby/caephub/pkg/engine"
	"github.com/cuemby/caephub/pkg/events"
	"github.com/cuemby/caephub/pkg/hub"
	"github.com/cuemby/caephub/pkg/log"
	"github.com/cuemby/caephub/pkg/metrics"
	"github.com/cuemby/caephub/pkg/storage"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordination hub",
	Long: `serve starts the coordination hub: it opens (or creates) the
BoltDB-backed Raft store, wires the message/task/claim/artifact stores
behind the hub facade, and serves /health, /ready and /metrics until it
receives SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("node-id", "node-1", "Unique node ID for this hub instance")
	serveCmd.Flags().String("bind-addr", "127.0.0.1:7946", "Raft address shown at startup (the engine uses an in-memory Raft transport and does not bind it)")
	serveCmd.Flags().String("data-dir", "", "Data directory for hub state (overrides HUB_DATA_DIR)")
	serveCmd.Flags().String("http-addr", "", "Address to serve /health, /ready and /metrics on (overrides HUB_HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %v", err)
	}

	nodeID, _ := cmd.Flags().GetString("node-id")
	bindAddr, _ := cmd.Flags().GetString("bind-addr")
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("http-addr"); v != "" {
		cfg.HTTPAddr = v
	}

	fmt.Println("Starting caephub...")
	fmt.Printf("  Node ID: %s\n", nodeID)
	fmt.Printf("  Raft Address: %s\n", bindAddr)
	fmt.Printf("  HTTP Address: %s\n", cfg.HTTPAddr)
	fmt.Printf("  Data Directory: %s\n", cfg.DataDir)
	fmt.Println()

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %v", err)
	}

	eng, err := engine.New(engine.Config{NodeID: nodeID, DataDir: cfg.DataDir}, store)
	if err != nil {
		return fmt.Errorf("failed to start engine: %v", err)
	}
	fmt.Println("✓ Engine started")

	broker := events.NewBroker()
	broker.Start()
	fmt.Println("✓ Event broker started")

	h := hub.New(eng, cfg, broker, nil)
	h.Start()
	fmt.Println("✓ Hub started")

	collector := metrics.NewCollector(eng)
	collector.Start()
	fmt.Println("✓ Metrics collector started")

	healthServer := api.NewHealthServer(eng)
	errCh := make(chan error, 1)
	go func() {
		server := &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      healthServer.GetHandler(),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("health server error: %v", err)
		}
	}()
	fmt.Printf("✓ Health endpoints: http://%s/health, /ready, /metrics\n", cfg.HTTPAddr)
	fmt.Println()
	fmt.Println("caephub is running. Press Ctrl+C to stop.")
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		log.Logger.Error().Err(err).Msg("health server failed")
	}

	h.Stop()
	collector.Stop()
	broker.Stop()
	if err := eng.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down engine: %v", err)
	}

	fmt.Println("✓ Shutdown complete")
	return nil
}
