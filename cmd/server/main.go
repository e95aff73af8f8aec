package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/ytanalyzer/oauth-relay/internal/config"
	"github.com/ytanalyzer/oauth-relay/internal/session"
	"github.com/ytanalyzer/oauth-relay/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	host := flag.String("host", "", "Override listen host")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	store := session.NewStore(cfg.Session.Timeout)
	registry := ws.NewRegistry(cfg.WS.MaxConnections, cfg.WS.SendBuffer)
	server := ws.NewServer(store, registry, cfg.Session.KeepAliveInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ws.ListenAndServe(ctx, cfg.Server.Host, cfg.Server.Port, server.Routes()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
