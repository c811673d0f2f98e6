package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/codescope-mcp/internal/index"
	"github.com/dshills/codescope-mcp/internal/server"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	project := flag.String("project", ".", "path to the project root whose index should be queried")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("CodeScope MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", index.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", index.DriverName)
		os.Exit(0)
	}

	// Log to stderr; stdout is reserved for the protocol stream.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)
	logger.Info("CodeScope MCP Server starting",
		"version", version,
		"build_mode", index.BuildMode,
		"driver", index.DriverName,
		"project", *project)

	srv, err := server.New(server.Config{
		Version:     version,
		ProjectRoot: *project,
		Factory: func(root string) (index.Provider, error) {
			return index.NewSQLiteProvider(root)
		},
		Logger: logger,
	})
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("server ready, listening on stdio")
		errChan <- srv.Serve(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
		<-errChan
	case err := <-errChan:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}
