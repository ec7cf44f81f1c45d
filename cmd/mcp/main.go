package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/pid-asset-extractor/internal/adapters/mcp"
	"github.com/kirillkom/pid-asset-extractor/internal/bootstrap"
	"github.com/kirillkom/pid-asset-extractor/internal/config"
	"github.com/kirillkom/pid-asset-extractor/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err.Error())
		os.Exit(1)
	}
	// stdout carries the MCP protocol.
	logger := logging.New(os.Stderr, "mcp", cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.WithLogger(logger), bootstrap.WithoutQueue())
	if err != nil {
		logger.Error("bootstrap_error", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()

	s := mcpadapter.NewServer(mcpadapter.NewTools(app.ReviewUC, app.ReviewUC), version)
	if err := server.ServeStdio(s); err != nil {
		logger.Error("mcp_serve_error", "error", err.Error())
		os.Exit(1)
	}
}
