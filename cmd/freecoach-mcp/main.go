// Command freecoach-mcp serves the coach as an MCP server over stdio.
//
// With -url it forwards every tool call to a running FreeCoach server (for
// example over Tailscale); otherwise it opens the configured database and
// runs the coach in-process.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/meltforce/freecoach/internal/app"
	"github.com/meltforce/freecoach/internal/config"
	coachmcp "github.com/meltforce/freecoach/internal/mcp"
	"github.com/prometheus/client_golang/prometheus"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (local mode)")
	remoteURL := flag.String("url", "", "base URL of a FreeCoach server (remote mode)")
	apiKey := flag.String("api-key", os.Getenv("FREECOACH_AUTH_API_KEY"), "API key for remote write calls")
	flag.Parse()

	// stdout carries the protocol.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var c coachmcp.Coach
	if *remoteURL != "" {
		c = coachmcp.NewHTTPClient(*remoteURL, *apiKey)
		log.Info("FreeCoach MCP starting", "version", Version, "mode", "remote", "url", *remoteURL)
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))

		a, err := app.New(context.Background(), cfg, prometheus.NewRegistry(), log)
		if err != nil {
			log.Error("failed to start coach", "error", err)
			os.Exit(1)
		}
		defer a.Close()
		c = a.Service
		log.Info("FreeCoach MCP starting", "version", Version, "mode", "local")
	}

	if err := mcpserver.ServeStdio(coachmcp.New(c, Version, log)); err != nil {
		log.Error("mcp server error", "error", err)
	}
}
