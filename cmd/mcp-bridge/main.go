package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	bridge "github.com/INQUIRELAB/mcp-bridge-api"
	"github.com/INQUIRELAB/mcp-bridge-api/internal/logger"
)

const version = "1.0.0"

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "mcp-bridge",
		Short: "MCP process-supervising protocol bridge",
		Long: `mcp-bridge hosts child MCP server processes and exposes them over a
single HTTP/JSON surface, translating REST calls into JSON-RPC requests
framed over each child's standard input and output.`,
	}

	var (
		configPath string
		listenAddr string
		logFile    string
		logLevel   string
	)

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Load the configured fleet and serve the HTTP surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, listenAddr, logFile, logLevel)
		},
	}
	serve.Flags().StringVar(&configPath, "config", "", "path to the mcpServers JSON config (default: $MCP_CONFIG_PATH or ./mcp_config.json)")
	serve.Flags().StringVar(&listenAddr, "listen", ":8080", "HTTP listen address")
	serve.Flags().StringVar(&logFile, "logfile", "", "path to a rotating log file, in addition to stderr")
	serve.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(serve)
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the bridge version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	})

	return root
}

func runServe(configPath, listenAddr, logFile, logLevel string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := logger.New(logger.Config{FilePath: logFile, Level: level, Color: true})

	b := bridge.New(log)
	if err := bridge.RegisterMetricsDefault(); err != nil {
		log.Warn("failed to register metrics", "error", err)
	}
	if err := b.LoadFleet(configPath); err != nil {
		log.Warn("failed to load fleet", "error", err)
	}

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("mcp-bridge listening", "addr", listenAddr)
		serveErr <- server.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	b.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
